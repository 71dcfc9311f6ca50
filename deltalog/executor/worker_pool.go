package executor

import (
	"runtime"
	"sync"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/planner"
)

// workerPool runs independent plan-variant evaluations concurrently within
// one semi-naive round, merging results back in index order. Workers are
// forked per round and joined before any result is folded into the store;
// none outlive the round that spawned them.
type workerPool struct {
	workers int
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &workerPool{workers: workers}
}

// runParallel evaluates fn over every job using up to p.workers goroutines
// and returns results in job order. A round's variants touch only the
// store's read paths (Probe/DeltaProbe) and the store's own mutex guards
// its maps, so results are merged into the store serially by the caller.
func (p *workerPool) runParallel(jobs []*planner.Plan, fn func(*planner.Plan) []deltalog.Fact) [][]deltalog.Fact {
	if len(jobs) == 0 {
		return nil
	}

	results := make([][]deltalog.Fact, len(jobs))
	indices := make(chan int, len(jobs))

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				results[idx] = fn(jobs[idx])
			}
		}()
	}

	for i := range jobs {
		indices <- i
	}
	close(indices)

	wg.Wait()
	return results
}

package planner

import (
	"sort"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/ir"
)

type edge struct {
	from, to deltalog.Symbol
	negated  bool
}

// Stratify computes the evaluation strata: predicates are grouped so that
// a negated dependency always crosses into a strictly later stratum, and
// stratification fails (ProgramInvalid) iff some predicate transitively
// depends on its own negation. Strata are returned in evaluation order (a
// stratum only depends on earlier strata).
func Stratify(program *ir.Program) ([][]deltalog.Symbol, error) {
	nodes := make(map[deltalog.Symbol]bool)
	for sym := range program.Relations {
		nodes[sym] = true
	}

	var edges []edge
	adj := make(map[deltalog.Symbol][]deltalog.Symbol) // from -> to, for SCC discovery
	for _, rule := range program.Rules {
		for _, b := range rule.Body {
			e := edge{from: b.Relation, to: rule.Head.Relation, negated: b.Negated}
			edges = append(edges, e)
			adj[e.from] = append(adj[e.from], e.to)
		}
	}

	sccOf, order := tarjanSCC(nodes, adj)

	// Reject any negative edge whose endpoints fall in the same SCC: that
	// predicate would transitively depend on its own negation.
	for _, e := range edges {
		if e.negated && sccOf[e.from] == sccOf[e.to] {
			return nil, deltalog.NewError(deltalog.ErrProgramInvalid, e.to,
				"relation %s is not stratifiable: negation through a recursive cycle with %s", e.to, e.from)
		}
	}

	// Build the condensation DAG over SCC ids and assign each SCC a
	// stratum equal to its longest-path depth from a source (a body SCC
	// always precedes the head SCCs that depend on it).
	sccNodes := make(map[int][]deltalog.Symbol)
	for sym, id := range sccOf {
		sccNodes[id] = append(sccNodes[id], sym)
	}

	sccEdges := make(map[int]map[int]bool)
	for _, e := range edges {
		from, to := sccOf[e.from], sccOf[e.to]
		if from == to {
			continue
		}
		if sccEdges[from] == nil {
			sccEdges[from] = make(map[int]bool)
		}
		sccEdges[from][to] = true
	}

	depth := make(map[int]int)
	for _, id := range order { // order is a reverse-postorder (topological) SCC sequence
		depth[id] = 0
	}
	for _, from := range order {
		for to := range sccEdges[from] {
			if depth[from]+1 > depth[to] {
				depth[to] = depth[from] + 1
			}
		}
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	strata := make([][]deltalog.Symbol, maxDepth+1)
	for id, syms := range sccNodes {
		d := depth[id]
		sort.Slice(syms, func(i, j int) bool { return syms[i].Compare(syms[j]) < 0 })
		strata[d] = append(strata[d], syms...)
	}

	return strata, nil
}

// tarjanSCC computes strongly connected components and returns a mapping
// from node to component id along with the components in topological
// order (every component before the components that depend on it), which
// the single depth-relaxation pass in Stratify relies on.
func tarjanSCC(nodes map[deltalog.Symbol]bool, adj map[deltalog.Symbol][]deltalog.Symbol) (map[deltalog.Symbol]int, []int) {
	index := 0
	indices := make(map[deltalog.Symbol]int)
	lowlink := make(map[deltalog.Symbol]int)
	onStack := make(map[deltalog.Symbol]bool)
	var stack []deltalog.Symbol
	sccOf := make(map[deltalog.Symbol]int)
	nextSCC := 0
	var componentOrder []int

	// Deterministic iteration order for reproducible stratification.
	var sorted []deltalog.Symbol
	for n := range nodes {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })

	var strongConnect func(v deltalog.Symbol)
	strongConnect = func(v deltalog.Symbol) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := append([]deltalog.Symbol(nil), adj[v]...)
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Compare(neighbors[j]) < 0 })
		for _, w := range neighbors {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			id := nextSCC
			nextSCC++
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				sccOf[w] = id
				if w == v {
					break
				}
			}
			componentOrder = append(componentOrder, id)
		}
	}

	for _, v := range sorted {
		if _, seen := indices[v]; !seen {
			strongConnect(v)
		}
	}

	// Tarjan emits components in reverse topological order (a component is
	// finished only after every component reachable from it, i.e. the
	// relations that depend on it); reverse it so
	// componentOrder is forward-topological for the depth relaxation above.
	for i, j := 0, len(componentOrder)-1; i < j; i, j = i+1, j-1 {
		componentOrder[i], componentOrder[j] = componentOrder[j], componentOrder[i]
	}

	return sccOf, componentOrder
}

package storage

import (
	"fmt"

	"github.com/deltalog/deltalog/deltalog"
)

// relation holds one relation's state: the stable set S, the two delta
// views used during one semi-naive round (deltaActive is what this
// round's delta variants probe; deltaNext accumulates facts freshly
// derived during the round and is promoted to deltaActive at the next
// swap), support counts, the facts added during the current insertion
// epoch (epochNew, re-exposed as a delta to each later stratum), and the
// insert/remove requests staged until the next poll.
//
// Invariant: stable and deltaActive are disjoint. A fact sits in
// deltaActive for exactly one round and is folded into stable by the
// swap that retires it.
type relation struct {
	symbol      deltalog.Symbol
	arity       int
	extensional bool

	stable map[string]deltalog.Fact
	counts map[string]int

	deltaActive map[string]deltalog.Fact
	deltaNext   map[string]deltalog.Fact
	epochNew    map[string]deltalog.Fact

	pendingInserts  map[string]deltalog.Fact
	pendingRemovals map[string]deltalog.Fact

	indices map[string]*index
}

func newRelation(sym deltalog.Symbol, arity int, extensional bool) *relation {
	return &relation{
		symbol:          sym,
		arity:           arity,
		extensional:     extensional,
		stable:          make(map[string]deltalog.Fact),
		counts:          make(map[string]int),
		deltaActive:     make(map[string]deltalog.Fact),
		deltaNext:       make(map[string]deltalog.Fact),
		epochNew:        make(map[string]deltalog.Fact),
		pendingInserts:  make(map[string]deltalog.Fact),
		pendingRemovals: make(map[string]deltalog.Fact),
		indices:         make(map[string]*index),
	}
}

func tkey(f deltalog.Fact) string { return deltalog.TupleKey(f.Terms) }

// ensureIndex returns the index over the given bound columns, building and
// backfilling it from the current stable set the first time it is asked
// for.
func (r *relation) ensureIndex(columns []int) *index {
	key := patternKey(columns)
	ix, ok := r.indices[key]
	if !ok {
		ix = newIndex(columns)
		for _, f := range r.stable {
			ix.add(f)
		}
		r.indices[key] = ix
	}
	return ix
}

func (r *relation) indexAdd(f deltalog.Fact) {
	for _, ix := range r.indices {
		ix.add(f)
	}
}

func (r *relation) indexRemove(f deltalog.Fact) {
	for _, ix := range r.indices {
		ix.remove(f)
	}
}

// queueInsert stages an extensional insertion. An insert annihilates a
// queued removal of the same tuple and vice versa, so any permutation of
// one batch of inserts and removals reaches the same staged state.
func (r *relation) queueInsert(f deltalog.Fact) {
	k := tkey(f)
	if _, staged := r.pendingRemovals[k]; staged {
		delete(r.pendingRemovals, k)
		return
	}
	r.pendingInserts[k] = f
}

// queueRemoval stages an extensional removal of fact f, returning whether
// there was anything to remove (present in stable, or cancelling a staged
// insert of the same tuple).
func (r *relation) queueRemoval(f deltalog.Fact) bool {
	k := tkey(f)
	if _, staged := r.pendingInserts[k]; staged {
		delete(r.pendingInserts, k)
		return true
	}
	if _, present := r.stable[k]; present {
		r.pendingRemovals[k] = f
		return true
	}
	return false
}

// incrementSupport raises c(f) by one. If the prior count was zero the
// fact is fresh: it enters deltaNext and becomes visible to the next
// round's delta probes after the swap.
func (r *relation) incrementSupport(f deltalog.Fact) (fresh bool) {
	k := tkey(f)
	prev := r.counts[k]
	r.counts[k] = prev + 1
	if prev == 0 {
		r.deltaNext[k] = f
		return true
	}
	return false
}

// decrementSupport lowers c(f) by one. When it reaches zero the fact
// leaves the stable set and its indices, and the caller is told so it can
// queue the cascade. Decrementing a zero count means the derivation
// bookkeeping is corrupt, which is unrecoverable.
func (r *relation) decrementSupport(f deltalog.Fact) (zeroed bool) {
	k := tkey(f)
	prev := r.counts[k]
	if prev <= 0 {
		panic(fmt.Sprintf("deltalog: support count underflow decrementing %s%v", r.symbol, f.Terms))
	}
	r.counts[k] = prev - 1
	if r.counts[k] == 0 {
		delete(r.counts, k)
		delete(r.stable, k)
		r.indexRemove(f)
		return true
	}
	return false
}

// swapDeltas retires the round that just ran: the delta the round consumed
// is folded into stable (and recorded in epochNew for later strata), and
// the facts the round derived are promoted to become the next round's
// delta. Reports whether that next delta is non-empty, which is the round
// loop's continuation signal.
func (r *relation) swapDeltas() (hadNew bool) {
	for k, f := range r.deltaActive {
		r.stable[k] = f
		r.epochNew[k] = f
		r.indexAdd(f)
	}
	hadNew = len(r.deltaNext) > 0
	r.deltaActive = r.deltaNext
	r.deltaNext = make(map[string]deltalog.Fact)
	return hadNew
}

// applyPendingInserts applies staged extensional inserts: each absent
// tuple enters stable with support 1 (the user's own support) and is
// recorded in epochNew so the first stratum's entry exposes it as a
// delta. An insert of a tuple already in stable is a no-op.
func (r *relation) applyPendingInserts() {
	for k, f := range r.pendingInserts {
		if _, present := r.stable[k]; present {
			continue
		}
		r.counts[k] = 1
		r.stable[k] = f
		r.epochNew[k] = f
		r.indexAdd(f)
	}
	r.pendingInserts = make(map[string]deltalog.Fact)
}

// exposeEpochDelta moves this epoch's accumulated new facts out of stable
// and into deltaActive, so the stratum about to run sees everything added
// so far this poll — by the user or by earlier strata — as one delta.
// The first swap of that stratum's round loop folds them straight back.
func (r *relation) exposeEpochDelta() {
	for k, f := range r.epochNew {
		if _, present := r.stable[k]; !present {
			continue
		}
		delete(r.stable, k)
		r.indexRemove(f)
		r.deltaActive[k] = f
	}
}

func (r *relation) clearEpochDelta() {
	r.epochNew = make(map[string]deltalog.Fact)
}

// takePendingRemovals hands back the staged removals without touching
// support counts; the deletion epoch decrements them one at a time so
// each cascade step re-derives against a store that reflects every
// removal processed before it.
func (r *relation) takePendingRemovals() []deltalog.Fact {
	if len(r.pendingRemovals) == 0 {
		return nil
	}
	out := make([]deltalog.Fact, 0, len(r.pendingRemovals))
	for _, f := range r.pendingRemovals {
		out = append(out, f)
	}
	r.pendingRemovals = make(map[string]deltalog.Fact)
	return out
}

func (r *relation) isQuiescent() bool {
	return len(r.deltaActive) == 0 && len(r.deltaNext) == 0 && len(r.epochNew) == 0 &&
		len(r.pendingInserts) == 0 && len(r.pendingRemovals) == 0
}

// Package storage implements the indexed relation store: per-relation
// stable and delta views, bound-column indices maintained synchronously
// with every mutation, and the per-fact support counts that make
// deletion by counted re-derivation possible. The store is the sole
// owner of all fact memory in a runtime.
package storage

import (
	"sync"

	"github.com/deltalog/deltalog/deltalog"
)

// Store holds every relation's state. All public methods are synchronous
// and safe to call from a single caller goroutine; the mutex exists only
// to make the internal fork-join worker pool (deltalog/executor) safe when
// its workers probe the store concurrently within one round.
type Store struct {
	mu        sync.Mutex
	relations map[deltalog.Symbol]*relation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{relations: make(map[deltalog.Symbol]*relation)}
}

// DeclareRelation registers a relation's arity and extensional/intensional
// classification. Programs call this once per relation at load time; it is
// idempotent for the same arguments.
func (s *Store) DeclareRelation(rel deltalog.Symbol, arity int, extensional bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relations[rel]; !ok {
		s.relations[rel] = newRelation(rel, arity, extensional)
	}
}

// HasRelation reports whether rel was declared.
func (s *Store) HasRelation(rel deltalog.Symbol) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.relations[rel]
	return ok
}

// Arity returns a declared relation's arity.
func (s *Store) Arity(rel deltalog.Symbol) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return 0, false
	}
	return r.arity, true
}

// IsExtensional reports whether rel is classified extensional.
func (s *Store) IsExtensional(rel deltalog.Symbol) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return false, false
	}
	return r.extensional, true
}

// RegisterIndex asks the store to maintain an index over the given bound
// columns for rel. The compiler calls this at program-load time for every
// (relation, bound-column-pattern) its plans will probe.
func (s *Store) RegisterIndex(rel deltalog.Symbol, columns []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return
	}
	r.ensureIndex(columns)
}

// Contains reports whether tuple is currently in S for rel. Like Query, it
// never observes an in-progress round's delta.
func (s *Store) Contains(rel deltalog.Symbol, terms []deltalog.Term) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return false
	}
	_, present := r.stable[deltalog.TupleKey(terms)]
	return present
}

// QueueInsert stages an extensional insertion; it has no effect until the
// next poll runs the insertion sub-epoch. Returns false if rel is unknown.
func (s *Store) QueueInsert(f deltalog.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[f.Relation]
	if !ok {
		return false
	}
	r.queueInsert(f)
	return true
}

// QueueRemoval stages an extensional removal of a single fact; it has no
// effect until the next poll runs the deletion sub-epoch.
func (s *Store) QueueRemoval(f deltalog.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[f.Relation]
	if !ok {
		return false
	}
	return r.queueRemoval(f)
}

// Probe returns every fact in rel's stable set S whose values at columns
// equal key, via the registered index when one exists and a linear scan
// otherwise (e.g. for ad-hoc query patterns the compiler never registered).
func (s *Store) Probe(rel deltalog.Symbol, columns []int, key []deltalog.Term) []deltalog.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return nil
	}
	if len(columns) == 0 {
		return scanAll(r.stable)
	}
	if ix, ok := r.indices[patternKey(columns)]; ok {
		return ix.lookup(key)
	}
	return scanFilter(r.stable, columns, key)
}

// DeltaProbe returns every fact in rel's active delta (this round's newly
// available input) whose values at columns equal key. The active delta is
// disjoint from S, so callers needing both union the two probes without
// deduplication.
func (s *Store) DeltaProbe(rel deltalog.Symbol, columns []int, key []deltalog.Term) []deltalog.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return nil
	}
	if len(columns) == 0 {
		return scanAll(r.deltaActive)
	}
	return scanFilter(r.deltaActive, columns, key)
}

// DeltaCount returns the size of rel's active delta, letting the evaluator
// skip variants whose delta position has nothing to offer this round.
func (s *Store) DeltaCount(rel deltalog.Symbol) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return 0
	}
	return len(r.deltaActive)
}

// SingletonOverride probes over nothing but a caller-supplied fact,
// applying the same column/key filter. The deletion epoch uses it to
// re-evaluate a rule with one specific removed fact standing in for a
// body position.
func SingletonOverride(f deltalog.Fact, columns []int, key []deltalog.Term) []deltalog.Fact {
	if matchesColumns(f, columns, key) {
		return []deltalog.Fact{f}
	}
	return nil
}

func scanAll(m map[string]deltalog.Fact) []deltalog.Fact {
	out := make([]deltalog.Fact, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	return out
}

func scanFilter(m map[string]deltalog.Fact, columns []int, key []deltalog.Term) []deltalog.Fact {
	var out []deltalog.Fact
	for _, f := range m {
		if matchesColumns(f, columns, key) {
			out = append(out, f)
		}
	}
	return out
}

func matchesColumns(f deltalog.Fact, columns []int, key []deltalog.Term) bool {
	for i, c := range columns {
		if f.Terms[c] != key[i] {
			return false
		}
	}
	return true
}

// SwapAllDeltas retires the round that just ran on every relation: each
// consumed delta folds into its stable set and each freshly derived batch
// becomes the next round's delta. Reports whether any relation has a
// non-empty next delta — the round loop's continuation signal.
func (s *Store) SwapAllDeltas() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, r := range s.relations {
		if r.swapDeltas() {
			changed = true
		}
	}
	return changed
}

// IntensionalInsert raises c(f) by one; a fact whose prior count was zero
// is fresh and enters the next round's delta.
func (s *Store) IntensionalInsert(f deltalog.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[f.Relation]
	if !ok {
		return false
	}
	return r.incrementSupport(f)
}

// IntensionalDecrement lowers c(f) by one, removing the fact from S (and
// reporting true) when no derivations remain.
func (s *Store) IntensionalDecrement(f deltalog.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[f.Relation]
	if !ok {
		return false
	}
	return r.decrementSupport(f)
}

// ApplyPendingInserts applies every staged extensional insert: absent
// tuples enter their stable set with support 1 and are recorded as new
// for this epoch, ready to be exposed to the first stratum.
func (s *Store) ApplyPendingInserts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		r.applyPendingInserts()
	}
}

// ExposeEpochDeltas re-exposes everything added so far this epoch as each
// relation's active delta, so the stratum about to start its round loop
// discovers derivations through those facts exactly once.
func (s *Store) ExposeEpochDeltas() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		r.exposeEpochDelta()
	}
}

// ClearEpochDeltas forgets the epoch-new bookkeeping once the insertion
// sub-epoch has run every stratum to quiescence.
func (s *Store) ClearEpochDeltas() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		r.clearEpochDelta()
	}
}

// TakePendingRemovals hands back every staged removal, cleared from the
// staging area but not yet decremented; the deletion epoch processes them
// one at a time.
func (s *Store) TakePendingRemovals() []deltalog.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []deltalog.Fact
	for _, r := range s.relations {
		out = append(out, r.takePendingRemovals()...)
	}
	return out
}

// Safe reports whether no relation has pending work: no staged
// insert/removal and no in-flight epoch or round delta.
func (s *Store) Safe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		if !r.isQuiescent() {
			return false
		}
	}
	return true
}

// Count returns the number of facts currently in S for rel.
func (s *Store) Count(rel deltalog.Symbol) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return 0
	}
	return len(r.stable)
}

// IndexCount returns the number of bound-column indices maintained for
// rel. Introspection only; evaluation never consults it.
func (s *Store) IndexCount(rel deltalog.Symbol) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[rel]
	if !ok {
		return 0
	}
	return len(r.indices)
}

// Relations returns the symbols of every declared relation.
func (s *Store) Relations() []deltalog.Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]deltalog.Symbol, 0, len(s.relations))
	for sym := range s.relations {
		out = append(out, sym)
	}
	return out
}

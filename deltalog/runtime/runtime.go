// Package runtime wires the compiler (deltalog/planner), the store
// (deltalog/storage), the semi-naive evaluator (deltalog/executor), and
// the query engine (deltalog/query) into one public surface: New, Insert,
// Remove, Poll, Safe, Contains, Query.
package runtime

import (
	"context"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/executor"
	"github.com/deltalog/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/deltalog/planner"
	"github.com/deltalog/deltalog/deltalog/query"
	"github.com/deltalog/deltalog/deltalog/storage"
)

// Options configures a Runtime at construction time. The zero value picks
// sensible defaults.
type Options struct {
	// Workers caps the goroutines used to evaluate independent delta
	// variants within one semi-naive round. 0 selects runtime.NumCPU().
	Workers int

	// Trace, when non-nil, receives a line per epoch boundary crossed by
	// Poll. Off by default.
	Trace func(format string, args ...any)
}

// Runtime is a compiled, running instance of one Datalog program: a fixed
// rule set paired with a mutable fact store.
type Runtime struct {
	universe *deltalog.Universe
	program  *ir.Program
	store    *storage.Store
	eval     *executor.Evaluator
	trace    func(format string, args ...any)
}

// New validates program (range-restriction, arity consistency, and
// stratifiability), compiles every rule to a plan, registers the indices
// those plans will probe, and returns a ready-to-use Runtime.
func New(program *ir.Program, opts Options) (*Runtime, error) {
	// Re-run ir.NewProgram's range-restriction and arity checks so a
	// Program assembled without it is held to the same rules.
	if _, err := ir.NewProgram(program.Rules); err != nil {
		return nil, err
	}
	strata, err := planner.Stratify(program)
	if err != nil {
		return nil, err
	}
	strataOf := make(map[deltalog.Symbol]int)
	for depth, syms := range strata {
		for _, sym := range syms {
			strataOf[sym] = depth
		}
	}

	universe := deltalog.NewUniverse()
	store := storage.NewStore()
	for sym, decl := range program.Relations {
		store.DeclareRelation(sym, decl.Arity, decl.Extensional)
	}

	plans := make([]*planner.Plan, 0, len(program.Rules))
	ruleInfos := make([]executor.RuleInfo, 0, len(program.Rules))
	for _, rule := range program.Rules {
		plan, err := planner.Compile(universe, rule)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
		ruleInfos = append(ruleInfos, executor.RuleInfo{
			Plan:    plan,
			Stratum: strataOf[rule.Head.Relation],
		})
	}

	for rel, patterns := range planner.BoundColumns(plans) {
		for _, cols := range patterns {
			store.RegisterIndex(rel, cols)
		}
	}

	eval := executor.NewEvaluator(store, ruleInfos, opts.Workers)

	return &Runtime{universe: universe, program: program, store: store, eval: eval, trace: opts.Trace}, nil
}

func (r *Runtime) tracef(format string, args ...any) {
	if r.trace != nil {
		r.trace(format, args...)
	}
}

// Universe exposes the runtime's term interner, needed to resolve query
// results (deltalog.Term) back to their original Go values.
func (r *Runtime) Universe() *deltalog.Universe { return r.universe }

// Insert queues an extensional insertion of rel(values...); it has no
// effect until the next Poll.
func (r *Runtime) Insert(rel deltalog.Symbol, values ...any) error {
	arity, ok := r.store.Arity(rel)
	if !ok {
		return deltalog.NewError(deltalog.ErrUnknownRelation, rel,
			"relation %s is not declared by this program", rel)
	}
	if len(values) != arity {
		return deltalog.NewError(deltalog.ErrArityMismatch, rel,
			"tuple has %d values, relation %s has arity %d", len(values), rel, arity)
	}

	terms := make([]deltalog.Term, len(values))
	for i, v := range values {
		terms[i] = r.universe.Intern(v)
	}
	r.store.QueueInsert(deltalog.NewFact(rel, terms...))
	return nil
}

// Remove resolves pattern against the current stable set and queues
// extensional removal of every matching fact; it has no effect until the
// next Poll. Only extensional relations may be targeted — removing from
// an intensional relation is rejected with ErrInvalidRemoval, since
// derived facts are only ever removed by the support-count cascade.
func (r *Runtime) Remove(pattern query.Pattern) error {
	extensional, ok := r.store.IsExtensional(pattern.Relation)
	if !ok {
		return deltalog.NewError(deltalog.ErrUnknownRelation, pattern.Relation,
			"relation %s is not declared by this program", pattern.Relation)
	}
	if !extensional {
		return deltalog.NewError(deltalog.ErrInvalidRemoval, pattern.Relation,
			"relation %s is intensional; only extensional relations accept remove", pattern.Relation)
	}

	facts, err := query.Run(r.universe, r.store, pattern)
	if err != nil {
		return err
	}
	for _, f := range facts {
		r.store.QueueRemoval(f)
	}
	return nil
}

// Poll runs the deletion sub-epoch to quiescence, then the insertion
// sub-epoch to quiescence, and transitions Safe() to true. It is
// synchronous and leaves no goroutine running after it returns. ctx is
// checked between deletion work-queue entries and between insertion
// rounds; once ctx is cancelled, Poll returns ctx's error at that check
// without reaching the fixed point.
func (r *Runtime) Poll(ctx context.Context) error {
	r.tracef("poll: deletion epoch starting")
	if err := r.eval.RunDeletionEpoch(ctx); err != nil {
		return err
	}
	r.tracef("poll: insertion epoch starting")
	if err := r.eval.RunInsertionEpoch(ctx); err != nil {
		return err
	}
	r.tracef("poll: complete")
	return nil
}

// Safe reports whether no insert/remove has occurred since the last Poll.
func (r *Runtime) Safe() bool {
	return r.store.Safe()
}

// Contains reports whether rel(values...) is currently in S. Like Query,
// it never observes an in-progress round's Δ⁺.
func (r *Runtime) Contains(rel deltalog.Symbol, values ...any) (bool, error) {
	arity, ok := r.store.Arity(rel)
	if !ok {
		return false, deltalog.NewError(deltalog.ErrUnknownRelation, rel,
			"relation %s is not declared by this program", rel)
	}
	if len(values) != arity {
		return false, deltalog.NewError(deltalog.ErrArityMismatch, rel,
			"tuple has %d values, relation %s has arity %d", len(values), rel, arity)
	}

	terms := make([]deltalog.Term, len(values))
	for i, v := range values {
		terms[i] = r.universe.Intern(v)
	}
	return r.store.Contains(rel, terms), nil
}

// Query answers a pattern query against the current stable set.
func (r *Runtime) Query(pattern query.Pattern) ([]deltalog.Fact, error) {
	return query.Run(r.universe, r.store, pattern)
}

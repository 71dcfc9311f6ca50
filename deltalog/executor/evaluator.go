// Package executor interprets compiled plans (deltalog/planner) against an
// indexed store (deltalog/storage), driving the semi-naive round loop for
// insertions and the counted re-derivation cascade for deletions.
package executor

import (
	"context"
	"sort"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/planner"
	"github.com/deltalog/deltalog/deltalog/storage"
)

// Row is a partial join tuple, one term per variable bound so far, ordered
// to match the schema a planner.Plan records alongside each atom step.
type Row []deltalog.Term

// RuleInfo is one compiled rule ready to be wired into an Evaluator: its
// plan and the stratum its head relation was assigned by planner.Stratify.
type RuleInfo struct {
	Plan    *planner.Plan
	Stratum int
}

// insertVariant pairs a semi-naive variant with the relation its chosen
// delta position reads, so rounds where that delta is empty skip it.
type insertVariant struct {
	plan     *planner.Plan
	deltaRel deltalog.Symbol
}

type ruleState struct {
	plan             *planner.Plan
	insertVariants   []insertVariant
	deletionVariants map[deltalog.Symbol][]*planner.Plan
}

// Evaluator owns the compiled rule set, grouped by stratum, and drives
// both sub-epochs of a poll over a single store.
type Evaluator struct {
	store      *storage.Store
	pool       *workerPool
	strata     []int
	byStratum  map[int][]*ruleState
	byRelation map[deltalog.Symbol][]*ruleState // rules whose body mentions a relation, for the deletion epoch
}

// NewEvaluator builds an Evaluator from a program's compiled rules.
// workers caps the concurrency of each round's variant evaluation
// (0 = runtime.NumCPU()).
func NewEvaluator(store *storage.Store, rules []RuleInfo, workers int) *Evaluator {
	byStratum := make(map[int][]*ruleState)
	byRelation := make(map[deltalog.Symbol][]*ruleState)
	seenStrata := make(map[int]bool)

	for _, ri := range rules {
		rs := &ruleState{
			plan:             ri.Plan,
			deletionVariants: make(map[deltalog.Symbol][]*planner.Plan),
		}
		for _, variant := range planner.InsertionVariants(ri.Plan) {
			rel, ok := planner.DeltaRelation(variant)
			if !ok {
				continue
			}
			rs.insertVariants = append(rs.insertVariants, insertVariant{plan: variant, deltaRel: rel})
		}
		byStratum[ri.Stratum] = append(byStratum[ri.Stratum], rs)
		seenStrata[ri.Stratum] = true

		for _, a := range ri.Plan.Atoms {
			if a.Negated {
				continue
			}
			if _, done := rs.deletionVariants[a.Relation]; done {
				continue
			}
			rs.deletionVariants[a.Relation] = planner.DeletionVariants(ri.Plan, a.Relation)
			byRelation[a.Relation] = append(byRelation[a.Relation], rs)
		}
	}

	var strata []int
	for s := range seenStrata {
		strata = append(strata, s)
	}
	sort.Ints(strata)

	return &Evaluator{
		store:      store,
		pool:       newWorkerPool(workers),
		strata:     strata,
		byStratum:  byStratum,
		byRelation: byRelation,
	}
}

// RunInsertionEpoch applies staged extensional inserts, then sweeps each
// stratum's rules to a fixed point in ascending stratum order. At each
// stratum entry, everything added so far this epoch — by the user or by
// earlier strata — is exposed as the opening delta, so each new grounding
// is discovered (and support-counted) exactly once across the whole poll.
func (e *Evaluator) RunInsertionEpoch(ctx context.Context) error {
	e.store.ApplyPendingInserts()

	for _, stratum := range e.strata {
		rules := e.byStratum[stratum]
		e.store.ExposeEpochDeltas()
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			facts := e.evaluateRound(rules)
			for _, f := range facts {
				e.store.IntensionalInsert(f)
			}
			if !e.store.SwapAllDeltas() {
				break
			}
		}
	}

	e.store.ClearEpochDeltas()
	return nil
}

func (e *Evaluator) evaluateRound(rules []*ruleState) []deltalog.Fact {
	var jobs []*planner.Plan
	for _, rs := range rules {
		for _, v := range rs.insertVariants {
			if e.store.DeltaCount(v.deltaRel) == 0 {
				continue
			}
			jobs = append(jobs, v.plan)
		}
	}
	batches := e.pool.runParallel(jobs, func(p *planner.Plan) []deltalog.Fact {
		return EvaluateVariant(e.store, p)
	})
	var out []deltalog.Fact
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// EvaluateVariant runs one compiled plan variant to completion against
// store and projects every matching row into a head fact. Results are not
// yet support-counted or deduplicated; the caller folds them through
// storage.Store.IntensionalInsert or IntensionalDecrement.
func EvaluateVariant(store *storage.Store, plan *planner.Plan) []deltalog.Fact {
	rows := []Row{{}}
	for _, atom := range plan.Atoms {
		rows = evalAtom(store, atom, rows)
		if len(rows) == 0 {
			return nil
		}
	}
	facts := make([]deltalog.Fact, 0, len(rows))
	for _, row := range rows {
		facts = append(facts, projectRow(plan.Project, row))
	}
	return facts
}

func evalAtom(store *storage.Store, atom planner.AtomStep, rows []Row) []Row {
	if atom.Negated {
		return filterNegated(store, atom, rows)
	}

	var out []Row
	for _, row := range rows {
		columns, key := joinKey(atom, row)
		for _, f := range fetchCandidates(store, atom, columns, key) {
			if matchesConstants(atom, f) && matchesSelfEqual(atom, f) {
				out = append(out, extendRow(row, atom, f))
			}
		}
	}
	return out
}

// filterNegated implements the anti-join: a row survives only if no fact
// in the atom's source view satisfies its bindings, constants, and
// self-equalities. Negated relations belong to earlier strata and are
// never the chosen delta position, so the view is the relation's full
// settled contents.
func filterNegated(store *storage.Store, atom planner.AtomStep, rows []Row) []Row {
	var out []Row
	for _, row := range rows {
		columns, key := joinKey(atom, row)
		blocked := false
		for _, f := range fetchCandidates(store, atom, columns, key) {
			if matchesConstants(atom, f) && matchesSelfEqual(atom, f) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, row)
		}
	}
	return out
}

func joinKey(atom planner.AtomStep, row Row) ([]int, []deltalog.Term) {
	if len(atom.EquiJoin) == 0 {
		return nil, nil
	}
	columns := make([]int, len(atom.EquiJoin))
	key := make([]deltalog.Term, len(atom.EquiJoin))
	for i, jc := range atom.EquiJoin {
		columns[i] = jc.AtomColumn
		key[i] = row[jc.SchemaColumn]
	}
	return columns, key
}

func fetchCandidates(store *storage.Store, atom planner.AtomStep, columns []int, key []deltalog.Term) []deltalog.Fact {
	switch atom.Source {
	case planner.SourceDelta:
		return store.DeltaProbe(atom.Relation, columns, key)
	case planner.SourceCumulative:
		stable := store.Probe(atom.Relation, columns, key)
		delta := store.DeltaProbe(atom.Relation, columns, key)
		if len(delta) == 0 {
			return stable
		}
		// Copy before combining: Probe may hand back an index's own bucket.
		out := make([]deltalog.Fact, 0, len(stable)+len(delta))
		out = append(out, stable...)
		return append(out, delta...)
	case planner.SourceSingleton:
		return storage.SingletonOverride(atom.Singleton, columns, key)
	case planner.SourceStablePlusSingleton:
		stable := store.Probe(atom.Relation, columns, key)
		extra := storage.SingletonOverride(atom.Singleton, columns, key)
		if len(extra) == 0 {
			return stable
		}
		out := make([]deltalog.Fact, 0, len(stable)+len(extra))
		out = append(out, stable...)
		return append(out, extra...)
	default:
		return store.Probe(atom.Relation, columns, key)
	}
}

func matchesConstants(atom planner.AtomStep, f deltalog.Fact) bool {
	for col, want := range atom.Constants {
		if f.Terms[col] != want {
			return false
		}
	}
	return true
}

func matchesSelfEqual(atom planner.AtomStep, f deltalog.Fact) bool {
	for _, pair := range atom.SelfEqual {
		if f.Terms[pair[0]] != f.Terms[pair[1]] {
			return false
		}
	}
	return true
}

func extendRow(row Row, atom planner.AtomStep, f deltalog.Fact) Row {
	next := make(Row, len(row), len(row)+len(atom.NewVars))
	copy(next, row)
	for _, nv := range atom.NewVars {
		next = append(next, f.Terms[nv.AtomColumn])
	}
	return next
}

func projectRow(proj planner.ProjectStep, row Row) deltalog.Fact {
	terms := make([]deltalog.Term, len(proj.Columns))
	for i, col := range proj.Columns {
		if col < 0 {
			terms[i] = proj.Constants[i]
		} else {
			terms[i] = row[col]
		}
	}
	return deltalog.NewFact(proj.Relation, terms...)
}

// Package planner compiles rule IR (deltalog/ir) into small
// relational-algebra plans: a left-deep sequence of scan/join steps plus
// a final head projection, pinned to the body's textual order. Plan steps
// are flat concrete types behind one small Source enum rather than an
// inheritance hierarchy, so executing a plan is a dispatch on that enum.
package planner

import "github.com/deltalog/deltalog/deltalog"

// Source selects which view of a relation an AtomStep reads.
type Source int

const (
	// SourceStable reads only the relation's settled set S.
	SourceStable Source = iota
	// SourceDelta reads only this round's active delta (newly available
	// since the previous round).
	SourceDelta
	// SourceCumulative reads S plus the active delta — used for body
	// positions that precede the chosen delta position in a semi-naive
	// variant, so that a grounding is discovered by exactly one variant
	// even when the same relation occurs more than once in a rule body
	// (see deltavariant.go).
	SourceCumulative
	// SourceSingleton reads a single caller-supplied fact instead of the
	// store: the chosen position of a deletion variant, pinned to the
	// fact whose removal is being propagated.
	SourceSingleton
	// SourceStablePlusSingleton reads S plus the caller-supplied fact.
	// Deletion-variant positions of the removed fact's own relation that
	// follow the chosen position read this view, so a grounding that used
	// the fact at several positions is still found — and found by exactly
	// one variant, since positions before the chosen one read S alone.
	SourceStablePlusSingleton
)

// JoinColumn binds an atom column to a column already present in the
// accumulated intermediate schema — an equi-join key.
type JoinColumn struct {
	AtomColumn   int
	SchemaColumn int
}

// NewVar extends the accumulated schema with a column this atom
// contributes that was not yet bound by an earlier atom.
type NewVar struct {
	AtomColumn int
	Name       string
}

// AtomStep is one body atom's contribution to the plan: its equi-join
// columns (already bound by an earlier atom), constant-equality filters,
// self-equality filters (a variable repeated within this atom), and the
// new schema columns it introduces.
type AtomStep struct {
	Relation  deltalog.Symbol
	Negated   bool
	Source    Source
	Singleton deltalog.Fact // meaningful only for the singleton-reading sources

	EquiJoin  []JoinColumn
	Constants map[int]deltalog.Term
	SelfEqual [][2]int
	NewVars   []NewVar
}

// ProjectStep reshapes the accumulated tuple into the rule's head atom,
// substituting interned constants for any constant head positions.
type ProjectStep struct {
	Relation  deltalog.Symbol
	Columns   []int // schema column to read for each head position, -1 if constant
	Constants map[int]deltalog.Term
}

// Plan is the compiled left-deep plan for one rule.
type Plan struct {
	Atoms   []AtomStep
	Project ProjectStep
	// Schemas[i] is the variable-name schema available after Atoms[i] has
	// run; Schemas[-1] (before any atom) is empty. Useful for diagnostics
	// and tests, not consulted by the interpreter itself.
	Schemas [][]string
}

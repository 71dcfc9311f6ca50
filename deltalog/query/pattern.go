// Package query implements the pattern-query engine, answering queries
// against the store's stable set through the same probe machinery the
// planner's compiled plans use for joins.
package query

import "github.com/deltalog/deltalog/deltalog"

// Term is one column of a Pattern: either a bound constant the result
// must match exactly, or a wildcard that accepts any value. There are no
// variables here — those only make sense inside a rule body, which is
// deltalog/ir's job.
type Term struct {
	wildcard bool
	value    any
}

// Wildcard matches any value in its column.
func Wildcard() Term { return Term{wildcard: true} }

// Const matches only columns holding exactly this value.
func Const(v any) Term { return Term{value: v} }

// Pattern is a query: a relation symbol plus one Term per column.
type Pattern struct {
	Relation deltalog.Symbol
	Terms    []Term
}

// New builds a Pattern. Wildcards and constants may appear in any mix.
func New(rel deltalog.Symbol, terms ...Term) Pattern {
	return Pattern{Relation: rel, Terms: terms}
}

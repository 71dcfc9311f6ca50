package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/deltalog/query"
)

func transitiveClosureProgram(t *testing.T) (*ir.Program, deltalog.Symbol, deltalog.Symbol) {
	t.Helper()
	edge := deltalog.NewSymbol("edge")
	tc := deltalog.NewSymbol("tc")
	x, y, z := ir.Variable("x"), ir.Variable("y"), ir.Variable("z")

	base := ir.Rule{
		Head: ir.Atom{Relation: tc, Terms: []ir.Term{x, y}},
		Body: []ir.BodyAtom{{Atom: ir.Atom{Relation: edge, Terms: []ir.Term{x, y}}}},
	}
	step := ir.Rule{
		Head: ir.Atom{Relation: tc, Terms: []ir.Term{x, z}},
		Body: []ir.BodyAtom{
			{Atom: ir.Atom{Relation: edge, Terms: []ir.Term{x, y}}},
			{Atom: ir.Atom{Relation: tc, Terms: []ir.Term{y, z}}},
		},
	}
	program, err := ir.NewProgram([]ir.Rule{base, step})
	require.NoError(t, err)
	return program, edge, tc
}

// Scenario 1: insertion-only transitive closure.
func TestScenario1TransitiveClosureInsertionsOnly(t *testing.T) {
	program, edge, tc := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		require.NoError(t, rt.Insert(edge, e[0], e[1]))
	}
	assert.False(t, rt.Safe())

	require.NoError(t, rt.Poll(context.Background()))
	assert.True(t, rt.Safe())

	facts, err := rt.Query(query.New(tc, query.Wildcard(), query.Wildcard()))
	require.NoError(t, err)
	assert.Len(t, facts, 6)

	ok, err := rt.Contains(tc, "a", "d")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Scenario 2: incremental insert after an initial poll extends existing
// transitive paths without recomputing from scratch.
func TestScenario2IncrementalInsertAfterPoll(t *testing.T) {
	program, edge, tc := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	require.NoError(t, rt.Insert(edge, "a", "b"))
	require.NoError(t, rt.Insert(edge, "b", "c"))
	require.NoError(t, rt.Poll(context.Background()))

	ok, err := rt.Contains(tc, "a", "d")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rt.Insert(edge, "c", "d"))
	require.NoError(t, rt.Poll(context.Background()))

	ok, err = rt.Contains(tc, "a", "d")
	require.NoError(t, err)
	assert.True(t, ok, "incremental poll must extend transitive closure through the new edge")
}

// Scenario 3: deletion with re-derivation — a fact supported by more than
// one derivation path survives removal of just one of its supports, and a
// singly-supported fact cascades away.
func TestScenario3DeletionWithRederivation(t *testing.T) {
	program, edge, tc := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"b", "d"}, {"a", "c"}, {"c", "d"}} {
		require.NoError(t, rt.Insert(edge, e[0], e[1]))
	}
	require.NoError(t, rt.Poll(context.Background()))

	ok, err := rt.Contains(tc, "a", "d")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, rt.Remove(query.New(edge, query.Const("b"), query.Const("d"))))
	require.NoError(t, rt.Poll(context.Background()))

	ok, err = rt.Contains(tc, "b", "d")
	require.NoError(t, err)
	assert.False(t, ok, "the removed edge's direct derivation must be gone")

	ok, err = rt.Contains(tc, "a", "d")
	require.NoError(t, err)
	assert.True(t, ok, "tc(a,d) still holds via a->c->d")
}

// Scenario 4: a rule with an unbound head variable is rejected at
// construction time, before any fact is ever inserted.
func TestScenario4RejectsUnboundHeadVariable(t *testing.T) {
	p := deltalog.NewSymbol("p")
	q := deltalog.NewSymbol("q")
	rule := ir.Rule{
		Head: ir.Atom{Relation: p, Terms: []ir.Term{ir.Variable("x"), ir.Variable("y")}},
		Body: []ir.BodyAtom{{Atom: ir.Atom{Relation: q, Terms: []ir.Term{ir.Variable("x")}}}},
	}
	_, err := ir.NewProgram([]ir.Rule{rule})
	require.Error(t, err)

	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrProgramInvalid, delErr.Kind)
}

// Scenario 5: inserting a tuple whose length disagrees with the relation's
// declared arity is rejected, not silently truncated or padded.
func TestScenario5ArityMismatchOnInsert(t *testing.T) {
	program, edge, _ := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	err = rt.Insert(edge, "a")
	require.Error(t, err)
	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrArityMismatch, delErr.Kind)
}

// Scenario 6: querying a relation the program never declared is rejected
// rather than silently returning an empty result.
func TestScenario6UnknownRelationQuery(t *testing.T) {
	program, _, _ := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	_, err = rt.Query(query.New(deltalog.NewSymbol("ghost"), query.Wildcard()))
	require.Error(t, err)
	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrUnknownRelation, delErr.Kind)
}

// Invariant: Remove against an intensional relation is rejected — derived
// facts are only ever retracted by the support-count cascade.
func TestRemoveAgainstIntensionalRelationRejected(t *testing.T) {
	program, _, tc := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	err = rt.Remove(query.New(tc, query.Wildcard(), query.Wildcard()))
	require.Error(t, err)
	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrInvalidRemoval, delErr.Kind)
}

// Invariant: order independence — inserting the same edges in a different
// order and polling once must reach the identical least model.
func TestOrderIndependenceOfInsertion(t *testing.T) {
	program1, edge1, tc1 := transitiveClosureProgram(t)
	rt1, err := New(program1, Options{})
	require.NoError(t, err)
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		require.NoError(t, rt1.Insert(edge1, e[0], e[1]))
	}
	require.NoError(t, rt1.Poll(context.Background()))

	program2, edge2, tc2 := transitiveClosureProgram(t)
	rt2, err := New(program2, Options{})
	require.NoError(t, err)
	for _, e := range [][2]string{{"c", "d"}, {"a", "b"}, {"b", "c"}} {
		require.NoError(t, rt2.Insert(edge2, e[0], e[1]))
	}
	require.NoError(t, rt2.Poll(context.Background()))

	facts1, err := rt1.Query(query.New(tc1, query.Wildcard(), query.Wildcard()))
	require.NoError(t, err)
	facts2, err := rt2.Query(query.New(tc2, query.Wildcard(), query.Wildcard()))
	require.NoError(t, err)
	assert.Equal(t, len(facts1), len(facts2))
	for _, f := range facts1 {
		from, _ := rt1.Universe().Lookup(f.Terms[0])
		to, _ := rt1.Universe().Lookup(f.Terms[1])
		ok, err := rt2.Contains(tc2, from, to)
		require.NoError(t, err)
		assert.True(t, ok, "tc(%v,%v) must be derived in both insertion orders", from, to)
	}
}

// Invariant: deletion/insertion idempotence — removing a fact that was
// never inserted, or re-inserting one already present, is a no-op rather
// than an error.
func TestRemoveAndInsertIdempotence(t *testing.T) {
	program, edge, _ := transitiveClosureProgram(t)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	require.NoError(t, rt.Remove(query.New(edge, query.Const("x"), query.Const("y"))))
	require.NoError(t, rt.Poll(context.Background()))
	assert.True(t, rt.Safe())

	require.NoError(t, rt.Insert(edge, "a", "b"))
	require.NoError(t, rt.Poll(context.Background()))
	require.NoError(t, rt.Insert(edge, "a", "b"))
	require.NoError(t, rt.Poll(context.Background()))

	ok, err := rt.Contains(edge, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Stratified negation: a negated relation is fully settled before any
// rule reading it runs, including facts inserted in the same batch.
func TestStratifiedNegation(t *testing.T) {
	node := deltalog.NewSymbol("node")
	banned := deltalog.NewSymbol("banned")
	allowed := deltalog.NewSymbol("allowed")
	x := ir.Variable("x")

	rule := ir.Rule{
		Head: ir.Atom{Relation: allowed, Terms: []ir.Term{x}},
		Body: []ir.BodyAtom{
			{Atom: ir.Atom{Relation: node, Terms: []ir.Term{x}}},
			{Atom: ir.Atom{Relation: banned, Terms: []ir.Term{x}}, Negated: true},
		},
	}
	program, err := ir.NewProgram([]ir.Rule{rule})
	require.NoError(t, err)
	rt, err := New(program, Options{})
	require.NoError(t, err)

	require.NoError(t, rt.Insert(node, "a"))
	require.NoError(t, rt.Insert(node, "b"))
	require.NoError(t, rt.Insert(banned, "b"))
	require.NoError(t, rt.Poll(context.Background()))

	ok, err := rt.Contains(allowed, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rt.Contains(allowed, "b")
	require.NoError(t, err)
	assert.False(t, ok, "a banned node inserted in the same batch must block the derivation")
}

// The Trace hook is off by default and, once wired, fires around each
// sub-epoch of Poll.
func TestTraceHookFiresAroundEachSubEpoch(t *testing.T) {
	program, edge, _ := transitiveClosureProgram(t)

	var lines []string
	rt, err := New(program, Options{Trace: func(format string, args ...any) {
		lines = append(lines, format)
	}})
	require.NoError(t, err)

	require.NoError(t, rt.Insert(edge, "a", "b"))
	require.NoError(t, rt.Poll(context.Background()))

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "deletion epoch")
	assert.Contains(t, lines[1], "insertion epoch")
	assert.Contains(t, lines[2], "complete")
}

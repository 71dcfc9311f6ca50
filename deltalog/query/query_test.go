package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/storage"
)

func TestRunUnknownRelation(t *testing.T) {
	u := deltalog.NewUniverse()
	store := storage.NewStore()

	_, err := Run(u, store, New(deltalog.NewSymbol("nope"), Wildcard()))
	require.Error(t, err)
	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrUnknownRelation, delErr.Kind)
}

func TestRunArityMismatch(t *testing.T) {
	u := deltalog.NewUniverse()
	edge := deltalog.NewSymbol("edge")
	store := storage.NewStore()
	store.DeclareRelation(edge, 2, true)

	_, err := Run(u, store, New(edge, Wildcard()))
	require.Error(t, err)
	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrArityMismatch, delErr.Kind)
}

func TestRunMatchesWildcardsAndConstants(t *testing.T) {
	u := deltalog.NewUniverse()
	edge := deltalog.NewSymbol("edge")
	store := storage.NewStore()
	store.DeclareRelation(edge, 2, true)

	a, b, c := u.Intern("a"), u.Intern("b"), u.Intern("c")
	for _, f := range []deltalog.Fact{
		deltalog.NewFact(edge, a, b),
		deltalog.NewFact(edge, a, c),
		deltalog.NewFact(edge, b, c),
	} {
		store.QueueInsert(f)
	}
	store.ApplyPendingInserts()

	all, err := Run(u, store, New(edge, Wildcard(), Wildcard()))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fromA, err := Run(u, store, New(edge, Const("a"), Wildcard()))
	require.NoError(t, err)
	assert.Len(t, fromA, 2)

	exact, err := Run(u, store, New(edge, Const("a"), Const("b")))
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, a, exact[0].Terms[0])
	assert.Equal(t, b, exact[0].Terms[1])
}

func TestRunNeverSeesPendingInserts(t *testing.T) {
	u := deltalog.NewUniverse()
	edge := deltalog.NewSymbol("edge")
	store := storage.NewStore()
	store.DeclareRelation(edge, 2, true)

	store.QueueInsert(deltalog.NewFact(edge, u.Intern("a"), u.Intern("b")))

	facts, err := Run(u, store, New(edge, Wildcard(), Wildcard()))
	require.NoError(t, err)
	assert.Empty(t, facts, "a queued-but-unpolled insert must not be visible to a query")
}

package query

import (
	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/storage"
)

// Run answers a pattern query against store, lowering the bound columns
// of p to a single storage.Probe. Results reflect the stable set only, so
// a caller racing a pending insert/remove against a query is expected to
// poll first.
func Run(u *deltalog.Universe, store *storage.Store, p Pattern) ([]deltalog.Fact, error) {
	if !store.HasRelation(p.Relation) {
		return nil, deltalog.NewError(deltalog.ErrUnknownRelation, p.Relation,
			"relation %s is not declared by this program", p.Relation)
	}
	arity, _ := store.Arity(p.Relation)
	if len(p.Terms) != arity {
		return nil, deltalog.NewError(deltalog.ErrArityMismatch, p.Relation,
			"query pattern has %d columns, relation %s has arity %d", len(p.Terms), p.Relation, arity)
	}

	columns, key := boundColumns(u, p)
	return store.Probe(p.Relation, columns, key), nil
}

// boundColumns interns every constant term of p and returns the
// column/key pair storage.Probe expects; wildcard columns are omitted.
func boundColumns(u *deltalog.Universe, p Pattern) ([]int, []deltalog.Term) {
	var columns []int
	var key []deltalog.Term
	for col, t := range p.Terms {
		if t.wildcard {
			continue
		}
		columns = append(columns, col)
		key = append(key, u.Intern(t.value))
	}
	return columns, key
}

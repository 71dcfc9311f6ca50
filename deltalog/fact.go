package deltalog

import "encoding/binary"

// Fact is a ground atom: a relation symbol tagged onto a fixed-arity
// tuple of interned terms. Duplicates within a relation are not
// permitted by the store (see deltalog/storage).
type Fact struct {
	Relation Symbol
	Terms    []Term
}

// NewFact builds a Fact from a relation symbol and term tuple.
func NewFact(rel Symbol, terms ...Term) Fact {
	return Fact{Relation: rel, Terms: terms}
}

// Arity returns the number of columns in the fact's tuple.
func (f Fact) Arity() int {
	return len(f.Terms)
}

// Key returns a comparable, hashable encoding of the fact suitable for use
// as a map key: the relation name followed by fixed-width 4-byte term ids,
// packed into one immutable string.
func (f Fact) Key() string {
	buf := make([]byte, len(f.Relation.name)+1+4*len(f.Terms))
	n := copy(buf, f.Relation.name)
	buf[n] = 0
	n++
	for _, t := range f.Terms {
		binary.BigEndian.PutUint32(buf[n:n+4], uint32(t))
		n += 4
	}
	return string(buf)
}

// TupleKey returns a comparable, hashable encoding of just the term tuple
// (no relation), used to key index entries where the relation is already
// fixed by the index itself.
func TupleKey(terms []Term) string {
	buf := make([]byte, 4*len(terms))
	for i, t := range terms {
		binary.BigEndian.PutUint32(buf[4*i:4*i+4], uint32(t))
	}
	return string(buf)
}

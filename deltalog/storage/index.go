package storage

import "github.com/deltalog/deltalog/deltalog"

// index maps the values of a fixed set of bound columns to the facts that
// share that key.
type index struct {
	columns []int
	entries map[string][]deltalog.Fact
}

func newIndex(columns []int) *index {
	return &index{columns: columns, entries: make(map[string][]deltalog.Fact)}
}

func keyFor(columns []int, f deltalog.Fact) string {
	key := make([]deltalog.Term, len(columns))
	for i, c := range columns {
		key[i] = f.Terms[c]
	}
	return deltalog.TupleKey(key)
}

func (ix *index) add(f deltalog.Fact) {
	k := keyFor(ix.columns, f)
	ix.entries[k] = append(ix.entries[k], f)
}

func (ix *index) remove(f deltalog.Fact) {
	k := keyFor(ix.columns, f)
	bucket := ix.entries[k]
	for i, existing := range bucket {
		if existing.Key() == f.Key() {
			bucket[i] = bucket[len(bucket)-1]
			ix.entries[k] = bucket[:len(bucket)-1]
			break
		}
	}
	if len(ix.entries[k]) == 0 {
		delete(ix.entries, k)
	}
}

func (ix *index) lookup(key []deltalog.Term) []deltalog.Fact {
	return ix.entries[deltalog.TupleKey(key)]
}

// patternKey canonicalizes a bound-column set into a stable map key. Columns
// are assumed already sorted ascending by the caller (the compiler always
// builds them that way from the variable schedule).
func patternKey(columns []int) string {
	buf := make([]byte, len(columns))
	for i, c := range columns {
		buf[i] = byte(c)
	}
	return string(buf)
}

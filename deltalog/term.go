package deltalog

import "sync"

// Term is an interned ground value. Equality and hashing of terms reduce
// to integer comparison of the id; the mapping back to the underlying
// Go value lives in the Universe that produced it.
type Term int32

// Universe is an append-only interning table shared by a single runtime:
// a lock-free read via sync.Map, falling back to a mutex-guarded insert
// only the first time a value is seen.
type Universe struct {
	cache sync.Map // map[any]Term, keyed by the normalized value

	mu    sync.Mutex
	terms []any // Term -> normalized value, grows only
}

// NewUniverse creates an empty, instance-owned term interner.
func NewUniverse() *Universe {
	return &Universe{}
}

// Intern returns the Term for v, creating one if v has not been seen before.
// v must be a comparable Go value (string, int64, float64, bool); ints are
// normalized to int64 so that Intern(1) and Intern(int64(1)) collide.
func (u *Universe) Intern(v any) Term {
	v = normalizeValue(v)

	if id, ok := u.cache.Load(v); ok {
		return id.(Term)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Another goroutine may have interned v while we waited for the lock.
	if id, ok := u.cache.Load(v); ok {
		return id.(Term)
	}

	id := Term(len(u.terms))
	u.terms = append(u.terms, v)
	u.cache.Store(v, id)
	return id
}

// Lookup returns the original value behind a Term, and whether it exists.
func (u *Universe) Lookup(t Term) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if int(t) < 0 || int(t) >= len(u.terms) {
		return nil, false
	}
	return u.terms[t], true
}

// Size returns the number of distinct interned values.
func (u *Universe) Size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.terms)
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return x
	}
}

package deltalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniverseInternIsStable(t *testing.T) {
	u := NewUniverse()

	a := u.Intern("alice")
	b := u.Intern("alice")
	assert.Equal(t, a, b, "interning the same value twice must return the same Term")

	c := u.Intern("bob")
	assert.NotEqual(t, a, c)
}

func TestUniverseInternNormalizesIntWidths(t *testing.T) {
	u := NewUniverse()

	a := u.Intern(1)
	b := u.Intern(int64(1))
	assert.Equal(t, a, b, "int and int64 of the same value must collide")

	c := u.Intern(float32(2.5))
	d := u.Intern(float64(2.5))
	assert.Equal(t, c, d)
}

func TestUniverseLookupRoundTrips(t *testing.T) {
	u := NewUniverse()
	term := u.Intern("hello")

	v, ok := u.Lookup(term)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok = u.Lookup(Term(9999))
	assert.False(t, ok)
}

func TestUniverseSize(t *testing.T) {
	u := NewUniverse()
	assert.Equal(t, 0, u.Size())
	u.Intern("a")
	u.Intern("b")
	u.Intern("a")
	assert.Equal(t, 2, u.Size())
}

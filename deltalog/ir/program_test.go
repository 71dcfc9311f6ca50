package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltalog/deltalog/deltalog"
)

func TestNewProgramClassifiesExtensionalVsIntensional(t *testing.T) {
	edge := deltalog.NewSymbol("edge")
	tc := deltalog.NewSymbol("tc")

	rule := Rule{
		Head: Atom{Relation: tc, Terms: []Term{Variable("x"), Variable("y")}},
		Body: []BodyAtom{
			{Atom: Atom{Relation: edge, Terms: []Term{Variable("x"), Variable("y")}}},
		},
	}

	p, err := NewProgram([]Rule{rule})
	require.NoError(t, err)

	edgeDecl, ok := p.Relation(edge)
	require.True(t, ok)
	assert.True(t, edgeDecl.Extensional)

	tcDecl, ok := p.Relation(tc)
	require.True(t, ok)
	assert.False(t, tcDecl.Extensional)
}

func TestNewProgramRejectsArityMismatch(t *testing.T) {
	edge := deltalog.NewSymbol("edge")
	tc := deltalog.NewSymbol("tc")

	r1 := Rule{
		Head: Atom{Relation: tc, Terms: []Term{Variable("x"), Variable("y")}},
		Body: []BodyAtom{{Atom: Atom{Relation: edge, Terms: []Term{Variable("x"), Variable("y")}}}},
	}
	r2 := Rule{
		Head: Atom{Relation: tc, Terms: []Term{Variable("x"), Variable("y"), Variable("z")}},
		Body: []BodyAtom{{Atom: Atom{Relation: edge, Terms: []Term{Variable("x"), Variable("y")}}}},
	}

	_, err := NewProgram([]Rule{r1, r2})
	require.Error(t, err)

	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrProgramInvalid, delErr.Kind)
}

func TestNewProgramRejectsUnboundHeadVariable(t *testing.T) {
	p := deltalog.NewSymbol("p")
	q := deltalog.NewSymbol("q")

	rule := Rule{
		Head: Atom{Relation: p, Terms: []Term{Variable("x"), Variable("y")}},
		Body: []BodyAtom{{Atom: Atom{Relation: q, Terms: []Term{Variable("x")}}}},
	}

	_, err := NewProgram([]Rule{rule})
	require.Error(t, err)

	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrProgramInvalid, delErr.Kind)
}

func TestNewProgramRejectsUnboundNegatedVariable(t *testing.T) {
	p := deltalog.NewSymbol("p")
	q := deltalog.NewSymbol("q")
	r := deltalog.NewSymbol("r")

	rule := Rule{
		Head: Atom{Relation: p, Terms: []Term{Variable("x")}},
		Body: []BodyAtom{
			{Atom: Atom{Relation: q, Terms: []Term{Variable("x")}}},
			{Atom: Atom{Relation: r, Terms: []Term{Variable("y")}}, Negated: true},
		},
	}

	_, err := NewProgram([]Rule{rule})
	require.Error(t, err)
}

func TestNewProgramRejectsRuleWithoutPositiveBody(t *testing.T) {
	p := deltalog.NewSymbol("p")
	q := deltalog.NewSymbol("q")

	rule := Rule{
		Head: Atom{Relation: p, Terms: []Term{Constant(1)}},
		Body: []BodyAtom{
			{Atom: Atom{Relation: q, Terms: []Term{Constant(1)}}, Negated: true},
		},
	}

	_, err := NewProgram([]Rule{rule})
	require.Error(t, err)

	var delErr *deltalog.Error
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, deltalog.ErrProgramInvalid, delErr.Kind)
}

func TestAtomVariablesDedupes(t *testing.T) {
	a := Atom{Terms: []Term{Variable("x"), Variable("y"), Variable("x"), Constant(1)}}
	assert.Equal(t, []string{"x", "y"}, a.Variables())
}

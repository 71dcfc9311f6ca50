// Package ir defines the rule intermediate representation consumed by the
// compiler (deltalog/planner). A surface-syntax front-end (out of scope
// for this module) constructs a Program from parsed rules and hands it to
// the runtime.
package ir

import "github.com/deltalog/deltalog/deltalog"

// Term is one position of an atom: either a variable, identified by name,
// or a constant ground value.
type Term struct {
	variable string
	constant any
	isVar    bool
}

// Variable constructs a variable term.
func Variable(name string) Term {
	return Term{variable: name, isVar: true}
}

// Constant constructs a constant term carrying a ground value.
func Constant(value any) Term {
	return Term{constant: value}
}

// IsVariable reports whether t is a variable (vs. a constant).
func (t Term) IsVariable() bool { return t.isVar }

// VariableName returns the variable's name; valid only if IsVariable().
func (t Term) VariableName() string { return t.variable }

// Value returns the constant's value; valid only if !IsVariable().
func (t Term) Value() any { return t.constant }

// Atom is a relation symbol applied to an ordered list of terms.
type Atom struct {
	Relation deltalog.Symbol
	Terms    []Term
}

// BodyAtom is an Atom appearing in a rule body, optionally negated.
type BodyAtom struct {
	Atom
	Negated bool
}

// Rule is a head atom derived from a conjunction of body atoms.
type Rule struct {
	Head Atom
	Body []BodyAtom
}

// Variables returns the distinct variable names occurring in the atom.
func (a Atom) Variables() []string {
	seen := make(map[string]bool, len(a.Terms))
	var out []string
	for _, t := range a.Terms {
		if t.IsVariable() && !seen[t.VariableName()] {
			seen[t.VariableName()] = true
			out = append(out, t.VariableName())
		}
	}
	return out
}

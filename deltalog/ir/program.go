package ir

import "github.com/deltalog/deltalog/deltalog"

// RelationDecl records what the program knows about one relation: its
// arity and whether it is populated only by user insertion (extensional)
// or only by rule derivation (intensional). A relation is classified
// intensional the moment it appears as some rule's head.
type RelationDecl struct {
	Symbol      deltalog.Symbol
	Arity       int
	Extensional bool
}

// Program is an immutable set of rules plus the relation declarations
// derived from them. Once built by NewProgram, a Program never changes;
// store state is the only thing that mutates afterward.
type Program struct {
	Rules     []Rule
	Relations map[deltalog.Symbol]*RelationDecl
}

// NewProgram validates rules and builds a Program, or returns a
// *deltalog.Error of kind ErrProgramInvalid.
//
// Validation performed here (stratifiability is checked separately by
// deltalog/planner, which needs the full dependency graph):
//   - every atom occurrence of a relation agrees on arity
//   - every rule has at least one positive body atom to drive it
//   - every rule is range-restricted: every head variable, and every
//     variable in a negated body atom, occurs in some positive body atom
func NewProgram(rules []Rule) (*Program, error) {
	relations := make(map[deltalog.Symbol]*RelationDecl)

	noteOccurrence := func(a Atom, isHead bool) error {
		decl, ok := relations[a.Relation]
		if !ok {
			decl = &RelationDecl{Symbol: a.Relation, Arity: len(a.Terms), Extensional: true}
			relations[a.Relation] = decl
		} else if decl.Arity != len(a.Terms) {
			return deltalog.NewError(deltalog.ErrProgramInvalid, a.Relation,
				"relation %s used with arity %d and arity %d", a.Relation, decl.Arity, len(a.Terms))
		}
		if isHead {
			decl.Extensional = false
		}
		return nil
	}

	for _, rule := range rules {
		if err := noteOccurrence(rule.Head, true); err != nil {
			return nil, err
		}
		for _, b := range rule.Body {
			if err := noteOccurrence(b.Atom, false); err != nil {
				return nil, err
			}
		}
	}

	for _, rule := range rules {
		if err := checkRangeRestriction(rule); err != nil {
			return nil, err
		}
	}

	return &Program{Rules: rules, Relations: relations}, nil
}

// checkRangeRestriction requires every variable in the head, and every
// variable in a negated body atom, to occur in some positive body atom of
// the same rule — and at least one positive body atom to exist, since a
// rule with none would have no derivations to count.
func checkRangeRestriction(rule Rule) error {
	positives := 0
	bound := make(map[string]bool)
	for _, b := range rule.Body {
		if b.Negated {
			continue
		}
		positives++
		for _, v := range b.Variables() {
			bound[v] = true
		}
	}
	if positives == 0 {
		return deltalog.NewError(deltalog.ErrProgramInvalid, rule.Head.Relation,
			"rule for %s has no positive body atom", rule.Head.Relation)
	}

	for _, v := range rule.Head.Variables() {
		if !bound[v] {
			return deltalog.NewError(deltalog.ErrProgramInvalid, rule.Head.Relation,
				"head variable %q is not range-restricted (does not appear in any positive body atom)", v)
		}
	}

	for _, b := range rule.Body {
		if !b.Negated {
			continue
		}
		for _, v := range b.Variables() {
			if !bound[v] {
				return deltalog.NewError(deltalog.ErrProgramInvalid, b.Relation,
					"negated body variable %q is not range-restricted (does not appear in any positive body atom)", v)
			}
		}
	}

	return nil
}

// Relation looks up a relation's declaration by symbol.
func (p *Program) Relation(sym deltalog.Symbol) (*RelationDecl, bool) {
	decl, ok := p.Relations[sym]
	return decl, ok
}

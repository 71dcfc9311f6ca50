package planner

import (
	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/ir"
)

// Compile walks a rule's body left to right, tracking the set of variables
// already bound. Body ordering is the rule's textual order, with no
// reordering heuristic. Constants are interned through u so that
// plan-level equality filters compare against the same Term ids the store
// uses for facts.
func Compile(u *deltalog.Universe, rule ir.Rule) (*Plan, error) {
	schema := make([]string, 0, 4)
	bound := make(map[string]int)

	atoms := make([]AtomStep, 0, len(rule.Body))
	schemas := make([][]string, 0, len(rule.Body))

	for _, b := range rule.Body {
		step := AtomStep{
			Relation:  b.Relation,
			Negated:   b.Negated,
			Constants: make(map[int]deltalog.Term),
		}

		firstOccurrence := make(map[string]int)

		for col, term := range b.Terms {
			if !term.IsVariable() {
				step.Constants[col] = u.Intern(term.Value())
				continue
			}

			name := term.VariableName()
			if schemaCol, ok := bound[name]; ok {
				step.EquiJoin = append(step.EquiJoin, JoinColumn{AtomColumn: col, SchemaColumn: schemaCol})
				continue
			}
			if firstCol, ok := firstOccurrence[name]; ok {
				step.SelfEqual = append(step.SelfEqual, [2]int{firstCol, col})
				continue
			}
			firstOccurrence[name] = col
			step.NewVars = append(step.NewVars, NewVar{AtomColumn: col, Name: name})
		}

		// A negated atom may not introduce new bindings: the anti-join
		// filters rows without extending them, so every one of its
		// variables must already be bound by an earlier positive atom.
		// Range-restriction (checked at ir.NewProgram time) only requires
		// the variable to occur in some positive atom, so a negated atom
		// placed before that atom is rejected here.
		if b.Negated && len(step.NewVars) > 0 {
			return nil, deltalog.NewError(deltalog.ErrProgramInvalid, rule.Head.Relation,
				"negated atom %s uses variable %q before any positive atom binds it", b.Relation, step.NewVars[0].Name)
		}
		for _, nv := range step.NewVars {
			bound[nv.Name] = len(schema)
			schema = append(schema, nv.Name)
		}

		atoms = append(atoms, step)
		schemas = append(schemas, append([]string(nil), schema...))
	}

	project, err := compileProjection(u, rule.Head, bound)
	if err != nil {
		return nil, err
	}

	return &Plan{Atoms: atoms, Project: project, Schemas: schemas}, nil
}

func compileProjection(u *deltalog.Universe, head ir.Atom, bound map[string]int) (ProjectStep, error) {
	proj := ProjectStep{
		Relation:  head.Relation,
		Columns:   make([]int, len(head.Terms)),
		Constants: make(map[int]deltalog.Term),
	}
	for i, term := range head.Terms {
		if term.IsVariable() {
			col, ok := bound[term.VariableName()]
			if !ok {
				// Unreachable given range-restriction is checked earlier,
				// but fail safe rather than index out of range at execution.
				return ProjectStep{}, deltalog.NewError(deltalog.ErrProgramInvalid, head.Relation,
					"head variable %q is unbound", term.VariableName())
			}
			proj.Columns[i] = col
		} else {
			proj.Columns[i] = -1
			proj.Constants[i] = u.Intern(term.Value())
		}
	}
	return proj, nil
}

// BoundColumns collects, across every atom step of every compiled plan, the
// (relation, column-pattern) index descriptors the plans will probe, so
// the store can register those indices at program-load time.
func BoundColumns(plans []*Plan) map[deltalog.Symbol][][]int {
	seen := make(map[deltalog.Symbol]map[string][]int)
	for _, p := range plans {
		for _, a := range p.Atoms {
			cols := equiJoinColumns(a)
			if len(cols) == 0 {
				continue
			}
			byRel, ok := seen[a.Relation]
			if !ok {
				byRel = make(map[string][]int)
				seen[a.Relation] = byRel
			}
			byRel[patternString(cols)] = cols
		}
	}
	out := make(map[deltalog.Symbol][][]int)
	for rel, patterns := range seen {
		for _, cols := range patterns {
			out[rel] = append(out[rel], cols)
		}
	}
	return out
}

func equiJoinColumns(a AtomStep) []int {
	cols := make([]int, len(a.EquiJoin))
	for i, j := range a.EquiJoin {
		cols[i] = j.AtomColumn
	}
	return cols
}

func patternString(cols []int) string {
	buf := make([]byte, len(cols))
	for i, c := range cols {
		buf[i] = byte(c)
	}
	return string(buf)
}

package planner

import "github.com/deltalog/deltalog/deltalog"

// InsertionVariants returns one plan variant per positive body position of
// plan. In the variant for position i, positions before i read S plus the
// active delta (SourceCumulative), position i reads the delta exactly
// (SourceDelta), and positions after i read S only (SourceStable). Because
// S and the delta are disjoint views, a grounding whose facts span several
// rounds is discovered by exactly one variant in exactly one round — the
// variant of the last position whose fact arrived in the newest round —
// even when the same relation occurs at more than one body position.
//
// Negated atoms read SourceCumulative: their relation belongs to an
// earlier stratum and is fully derived by the time this rule runs, but in
// the round right after a stratum entry part of its contents still sits
// in the exposed delta view rather than in S.
func InsertionVariants(plan *Plan) []*Plan {
	var variants []*Plan
	for i, atom := range plan.Atoms {
		if atom.Negated {
			continue
		}
		variants = append(variants, variantWithDeltaAt(plan, i))
	}
	return variants
}

// DeltaRelation returns the relation read by variant's chosen delta
// position, letting the evaluator skip the variant outright in rounds
// where that delta is empty.
func DeltaRelation(variant *Plan) (deltalog.Symbol, bool) {
	for _, atom := range variant.Atoms {
		if atom.Source == SourceDelta {
			return atom.Relation, true
		}
	}
	return deltalog.Symbol{}, false
}

func variantWithDeltaAt(plan *Plan, deltaPos int) *Plan {
	atoms := make([]AtomStep, len(plan.Atoms))
	for j, atom := range plan.Atoms {
		cp := atom
		switch {
		case atom.Negated:
			cp.Source = SourceCumulative
		case j < deltaPos:
			cp.Source = SourceCumulative
		case j == deltaPos:
			cp.Source = SourceDelta
		default:
			cp.Source = SourceStable
		}
		atoms[j] = cp
	}
	return &Plan{Atoms: atoms, Project: plan.Project, Schemas: plan.Schemas}
}

// DeletionVariants returns one plan variant per positive body position
// whose relation matches rel, for counted re-derivation: the chosen
// position is pinned to the single removed fact (SourceSingleton, filled
// in per removal by WithSingleton), later positions of the same relation
// read S plus that fact, and everything else reads S. The removed fact is
// already out of S when these run, so each variant answers "which
// derivations of the head needed the removed fact, first used at exactly
// this position?" — partitioning the lost groundings across variants the
// same way the insertion variants partition discovered ones.
func DeletionVariants(plan *Plan, rel deltalog.Symbol) []*Plan {
	var variants []*Plan
	for i, atom := range plan.Atoms {
		if atom.Negated || atom.Relation != rel {
			continue
		}
		variants = append(variants, variantWithSingletonAt(plan, i, rel))
	}
	return variants
}

func variantWithSingletonAt(plan *Plan, pos int, rel deltalog.Symbol) *Plan {
	atoms := make([]AtomStep, len(plan.Atoms))
	for j, atom := range plan.Atoms {
		cp := atom
		switch {
		case j == pos:
			cp.Source = SourceSingleton
		case j > pos && !atom.Negated && atom.Relation == rel:
			cp.Source = SourceStablePlusSingleton
		default:
			cp.Source = SourceStable
		}
		atoms[j] = cp
	}
	return &Plan{Atoms: atoms, Project: plan.Project, Schemas: plan.Schemas}
}

// WithSingleton returns a copy of plan with every singleton-reading atom's
// Singleton field set to f. Plans from DeletionVariants carry an empty
// placeholder; the deletion epoch fills it in per popped work-queue entry
// without recompiling the variant each time.
func WithSingleton(plan *Plan, f deltalog.Fact) *Plan {
	atoms := make([]AtomStep, len(plan.Atoms))
	copy(atoms, plan.Atoms)
	for i, atom := range atoms {
		if atom.Source == SourceSingleton || atom.Source == SourceStablePlusSingleton {
			atom.Singleton = f
			atoms[i] = atom
		}
	}
	return &Plan{Atoms: atoms, Project: plan.Project, Schemas: plan.Schemas}
}

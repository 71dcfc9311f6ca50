package executor

import (
	"context"

	"github.com/deltalog/deltalog/deltalog"
	"github.com/deltalog/deltalog/deltalog/planner"
)

// RunDeletionEpoch propagates staged extensional removals through the rule
// set by counted re-derivation. The work queue holds decrement requests —
// one per removed base fact, one per lost derivation discovered along the
// way — and each entry is processed in full before the next: the fact's
// support drops, and only if it reaches zero does the fact leave S and
// get swept through every rule that mentions its relation, with the fact
// itself pinned as the singleton source. Sweeping one removal at a time
// keeps each re-derivation consistent with all removals already applied,
// so a grounding that used several removed facts is decremented exactly
// once — by whichever of them is processed first. The cascade is a flat
// queue, not recursion, so derivation depth never becomes stack depth.
func (e *Evaluator) RunDeletionEpoch(ctx context.Context) error {
	queue := e.store.TakePendingRemovals()

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		f := queue[0]
		queue = queue[1:]

		if !e.store.IntensionalDecrement(f) {
			continue
		}

		// f has no remaining support and is out of S. Every grounding that
		// needed it is found by exactly one singleton variant; each match is
		// one lost derivation of that variant's head.
		var lost []deltalog.Fact
		for _, rs := range e.byRelation[f.Relation] {
			for _, variant := range rs.deletionVariants[f.Relation] {
				lost = append(lost, EvaluateVariant(e.store, planner.WithSingleton(variant, f))...)
			}
		}
		queue = append(queue, lost...)
	}
	return nil
}

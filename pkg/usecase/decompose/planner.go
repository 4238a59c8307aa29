package decompose

import (
	"github.com/m-mizutani/kioku/pkg/model"
)

// PlanExecutionOrder arranges sub-queries into ordered batches honoring
// declared dependencies. Sub-queries in the same batch are safe to run
// concurrently. Dangling dependency references are treated as satisfied
// immediately, and a dependency cycle collapses the remaining sub-queries
// into one final batch so the planner always terminates and never drops
// a sub-query.
func PlanExecutionOrder(subQueries []*model.SubQuery) [][]*model.SubQuery {
	if len(subQueries) == 0 {
		return nil
	}

	known := make(map[string]bool, len(subQueries))
	for _, sq := range subQueries {
		known[sq.ID] = true
	}

	placed := make(map[string]bool, len(subQueries))
	var batches [][]*model.SubQuery

	for remaining := len(subQueries); remaining > 0; {
		batch := make([]*model.SubQuery, 0, remaining)
		for _, sq := range subQueries {
			if placed[sq.ID] {
				continue
			}
			// Eligible: no dependency, a dangling reference, or the
			// dependency already placed in an earlier batch.
			if sq.Dependency == "" || !known[sq.Dependency] || placed[sq.Dependency] {
				batch = append(batch, sq)
			}
		}

		// Only a cycle leaves eligible work empty; break the impasse by
		// running everything left at maximum parallelism.
		if len(batch) == 0 {
			for _, sq := range subQueries {
				if !placed[sq.ID] {
					batch = append(batch, sq)
				}
			}
		}

		for _, sq := range batch {
			placed[sq.ID] = true
		}
		remaining -= len(batch)
		batches = append(batches, batch)
	}

	return batches
}

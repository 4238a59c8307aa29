package decompose_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/decompose"
)

func sq(id, dep string) *model.SubQuery {
	return &model.SubQuery{
		ID:         id,
		Text:       "question " + id,
		Intent:     model.IntentSingleFact,
		Dependency: dep,
		Priority:   model.DefaultPriority,
	}
}

func batchIDs(batch []*model.SubQuery) []string {
	ids := make([]string, 0, len(batch))
	for _, s := range batch {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestPlanEmptyInput(t *testing.T) {
	batches := decompose.PlanExecutionOrder(nil)
	gt.Equal(t, len(batches), 0)
}

func TestPlanLinearChain(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", ""),
		sq("q2", "q1"),
		sq("q3", "q2"),
	})

	gt.Equal(t, len(batches), 3)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1"})
	gt.Equal(t, batchIDs(batches[1]), []string{"q2"})
	gt.Equal(t, batchIDs(batches[2]), []string{"q3"})
}

func TestPlanMaximizesParallelism(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", ""),
		sq("q2", ""),
		sq("q3", "q1"),
		sq("q4", "q1"),
	})

	gt.Equal(t, len(batches), 2)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1", "q2"})
	gt.Equal(t, batchIDs(batches[1]), []string{"q3", "q4"})
}

func TestPlanMutualCycle(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", "q2"),
		sq("q2", "q1"),
	})

	total := 0
	seen := map[string]int{}
	for _, batch := range batches {
		for _, s := range batch {
			total++
			seen[s.ID]++
		}
	}
	gt.Equal(t, total, 2)
	gt.Equal(t, seen["q1"], 1)
	gt.Equal(t, seen["q2"], 1)
}

func TestPlanCycleAfterResolvableWork(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", ""),
		sq("q2", "q3"),
		sq("q3", "q2"),
	})

	gt.Equal(t, len(batches), 2)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1"})
	gt.Equal(t, batchIDs(batches[1]), []string{"q2", "q3"})
}

func TestPlanDanglingDependency(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", "q99"),
		sq("q2", "q1"),
	})

	// A reference to a nonexistent id is satisfied immediately, not blocking
	gt.Equal(t, len(batches), 2)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1"})
	gt.Equal(t, batchIDs(batches[1]), []string{"q2"})
}

func TestPlanSelfDependency(t *testing.T) {
	batches := decompose.PlanExecutionOrder([]*model.SubQuery{
		sq("q1", "q1"),
	})

	gt.Equal(t, len(batches), 1)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1"})
}

func TestPlanPriorityDoesNotAffectOrder(t *testing.T) {
	low := sq("q1", "")
	low.Priority = 1
	high := sq("q2", "")
	high.Priority = 5

	batches := decompose.PlanExecutionOrder([]*model.SubQuery{low, high})

	// Batch placement is dependency depth only; both land in batch one
	gt.Equal(t, len(batches), 1)
	gt.Equal(t, batchIDs(batches[0]), []string{"q1", "q2"})
}

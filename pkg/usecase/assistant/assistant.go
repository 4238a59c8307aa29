// Package assistant orchestrates the full retrieval pipeline: decompose a
// question, plan execution batches, run each batch through the multimodal
// search engine, and merge the answers.
package assistant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/policy"
	"github.com/m-mizutani/kioku/pkg/usecase/decompose"
	"github.com/m-mizutani/kioku/pkg/usecase/search"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Assistant wires the decomposer, planner and fusion engine together
type Assistant struct {
	decomposer *decompose.Decomposer
	engine     *search.Engine
	guard      *policy.Engine
	analytics  adapter.Analytics
}

// Option is a functional option for Assistant
type Option func(*Assistant)

// WithPolicy gates every Ask call behind retrieval guardrails
func WithPolicy(guard *policy.Engine) Option {
	return func(a *Assistant) {
		a.guard = guard
	}
}

// WithAnalytics records every Ask call to the analytics sink
func WithAnalytics(analytics adapter.Analytics) Option {
	return func(a *Assistant) {
		a.analytics = analytics
	}
}

// New creates an Assistant
func New(decomposer *decompose.Decomposer, engine *search.Engine, opts ...Option) *Assistant {
	a := &Assistant{
		decomposer: decomposer,
		engine:     engine,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// SubQueryResult pairs one sub-query with its search outcome
type SubQueryResult struct {
	SubQuery *model.SubQuery `json:"sub_query"`
	Result   *search.Result  `json:"result"`
}

// Output is the complete outcome of one Ask call
type Output struct {
	Decomposition *model.Decomposition    `json:"decomposition"`
	Batches       [][]*model.SubQuery     `json:"batches"`
	Results       []*SubQueryResult       `json:"results"`
	Merged        []*model.CombinedResult `json:"merged"`
}

// Ask answers a question against the organization's recorded knowledge.
// Sub-queries within one batch run concurrently; a hard failure in any
// search fails the whole call.
func (a *Assistant) Ask(ctx context.Context, query string, opts search.Options) (*Output, error) {
	startedAt := time.Now()

	if a.guard != nil {
		decision, err := a.guard.Eval(ctx, &policy.QueryInput{
			OrgID:         opts.OrgID,
			RecordingIDs:  opts.RecordingIDs,
			IncludeFrames: opts.IncludeFrames,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to evaluate retrieval policy")
		}
		if !decision.Allow {
			return nil, goerr.Wrap(policy.ErrQueryDenied, "retrieval rejected",
				goerr.V("org_id", opts.OrgID), goerr.V("reason", decision.Reason))
		}
		opts.RecordingIDs = decision.RecordingIDs
		opts.IncludeFrames = decision.AllowVisual
	}

	decomposition, err := a.decomposer.Decompose(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decompose query")
	}

	batches := decompose.PlanExecutionOrder(decomposition.SubQueries)

	results := make([]*SubQueryResult, 0, len(decomposition.SubQueries))
	for _, batch := range batches {
		batchResults, err := a.runBatch(ctx, batch, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, batchResults...)
	}

	out := &Output{
		Decomposition: decomposition,
		Batches:       batches,
		Results:       results,
		Merged:        mergeResults(results, opts.Limit),
	}

	a.recordSearchEvent(ctx, query, opts, out, time.Since(startedAt))

	return out, nil
}

// runBatch executes every sub-query in one batch concurrently
func (a *Assistant) runBatch(ctx context.Context, batch []*model.SubQuery, opts search.Options) ([]*SubQueryResult, error) {
	results := make([]*SubQueryResult, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, sq := range batch {
		wg.Add(1)
		go func(i int, sq *model.SubQuery) {
			defer wg.Done()
			result, err := a.engine.Search(ctx, sq.Text, opts)
			if err != nil {
				errs[i] = goerr.Wrap(err, "sub-query search failed", goerr.V("sub_query_id", sq.ID))
				return
			}
			results[i] = &SubQueryResult{SubQuery: sq, Result: result}
		}(i, sq)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// mergeResults flattens per-sub-query rankings into one list, keeping the
// best-scoring entry per chunk/frame id. Sub-query priority breaks score
// ties; overlapping sub-queries often re-surface the same chunk.
func mergeResults(results []*SubQueryResult, limit int) []*model.CombinedResult {
	type candidate struct {
		combined *model.CombinedResult
		priority int
	}

	best := make(map[string]candidate)
	order := make([]string, 0)
	for _, r := range results {
		for _, c := range r.Result.CombinedResults {
			key := string(c.Modality) + ":" + c.SourceID()
			prev, seen := best[key]
			if !seen {
				order = append(order, key)
			}
			if !seen || c.FinalScore > prev.combined.FinalScore {
				best[key] = candidate{combined: c, priority: r.SubQuery.Priority}
			}
		}
	}

	merged := make([]*model.CombinedResult, 0, len(order))
	priorities := make(map[*model.CombinedResult]int, len(order))
	for _, key := range order {
		merged = append(merged, best[key].combined)
		priorities[best[key].combined] = best[key].priority
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].FinalScore != merged[j].FinalScore {
			return merged[i].FinalScore > merged[j].FinalScore
		}
		return priorities[merged[i]] > priorities[merged[j]]
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged
}

// recordSearchEvent reports the search to the analytics sink. Failures are
// logged and never affect the answer.
func (a *Assistant) recordSearchEvent(ctx context.Context, query string, opts search.Options, out *Output, took time.Duration) {
	if a.analytics == nil {
		return
	}

	var transcriptCount, visualCount int
	for _, r := range out.Results {
		transcriptCount += r.Result.Metadata.TranscriptCount
		visualCount += r.Result.Metadata.VisualCount
	}

	ev := &model.SearchEvent{
		ID:              model.NewSearchEventID(),
		OrgID:           opts.OrgID,
		Query:           query,
		SubQueryCount:   len(out.Decomposition.SubQueries),
		TranscriptCount: transcriptCount,
		VisualCount:     visualCount,
		CombinedCount:   len(out.Merged),
		AudioWeight:     opts.AudioWeight,
		VisualWeight:    opts.VisualWeight,
		TookMilliSec:    took.Milliseconds(),
		CreatedAt:       time.Now(),
	}

	if err := a.analytics.InsertSearchEvent(ctx, ev); err != nil {
		logging.From(ctx).Warn("failed to record search event", "error", err, "event_id", ev.ID)
	}
}

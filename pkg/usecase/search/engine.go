// Package search merges transcript and visual-frame retrieval into a single
// ranked answer set.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/m-mizutani/kioku/pkg/utils/vector"
)

var (
	ErrMissingOrgID = goerr.New("org ID is required")
)

// Engine runs multimodal retrieval. It holds no per-request state; every
// Search call is independent.
type Engine struct {
	genAI        adapter.GenAI
	repo         repository.Repository
	storage      adapter.Storage
	signedURLTTL time.Duration
}

// EngineOption is a functional option for Engine
type EngineOption func(*Engine)

// WithStorage lets the engine resolve frame object paths into signed URLs
func WithStorage(st adapter.Storage) EngineOption {
	return func(e *Engine) {
		e.storage = st
	}
}

// WithSignedURLTTL overrides the signed URL lifetime
func WithSignedURLTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.signedURLTTL = ttl
	}
}

// NewEngine creates a multimodal search engine
func NewEngine(genAI adapter.GenAI, repo repository.Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		genAI:        genAI,
		repo:         repo,
		signedURLTTL: 15 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Search retrieves transcript and visual matches concurrently, weights them,
// and merges them into one ranked list. Frame store failures degrade to an
// empty visual set; transcript search and embedding failures propagate.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	if opts.OrgID == "" {
		return nil, goerr.Wrap(ErrMissingOrgID, "invalid search options")
	}
	if strings.TrimSpace(query) == "" {
		return nil, model.ErrEmptyQuery
	}

	embedding, err := e.genAI.Embedding(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	scope := model.SearchScope{
		OrgID:        opts.OrgID,
		RecordingIDs: opts.RecordingIDs,
	}

	type transcriptOut struct {
		results []*model.TranscriptResult
		err     error
	}
	transcriptCh := make(chan transcriptOut, 1)
	go func() {
		results, err := e.repo.SearchTranscripts(ctx, embedding, scope, opts.TranscriptLimit)
		transcriptCh <- transcriptOut{results: results, err: err}
	}()

	visualCh := make(chan []*model.VisualFrameResult, 1)
	withFrames := opts.IncludeFrames && !opts.DisableVisual
	if withFrames {
		go func() {
			visualCh <- e.searchFrames(ctx, embedding, scope)
		}()
	} else {
		visualCh <- nil
	}

	transcript := <-transcriptCh
	visual := <-visualCh
	if transcript.err != nil {
		// No meaningful answer is possible with zero retrieval sources
		return nil, goerr.Wrap(transcript.err, "transcript search failed",
			goerr.V("org_id", opts.OrgID))
	}

	combined := fuse(transcript.results, visual, opts.AudioWeight, opts.VisualWeight)
	if opts.Limit > 0 && len(combined) > opts.Limit {
		combined = combined[:opts.Limit]
	}

	return &Result{
		TranscriptResults: transcript.results,
		VisualResults:     visual,
		CombinedResults:   combined,
		Metadata: Metadata{
			TranscriptCount: len(transcript.results),
			VisualCount:     len(visual),
			CombinedCount:   len(combined),
			AudioWeight:     opts.AudioWeight,
			VisualWeight:    opts.VisualWeight,
		},
	}, nil
}

// searchFrames scores stored frames against the query embedding. Storage
// errors degrade to an empty result set so a search never fails while
// transcript results are still obtainable.
func (e *Engine) searchFrames(ctx context.Context, embedding []float32, scope model.SearchScope) []*model.VisualFrameResult {
	frames, err := e.repo.ListFrames(ctx, scope)
	if err != nil {
		logging.From(ctx).Warn("visual frame search degraded to empty results",
			"error", err, "org_id", scope.OrgID)
		return nil
	}

	type scoredFrame struct {
		frame      *model.Frame
		similarity float64
	}
	scored := make([]scoredFrame, 0, len(frames))
	for _, f := range frames {
		sim := vector.Cosine(embedding, f.Embedding)
		if sim < FrameRelevanceThreshold {
			continue
		}
		scored = append(scored, scoredFrame{frame: f, similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	results := make([]*model.VisualFrameResult, 0, len(scored))
	for _, s := range scored {
		results = append(results, &model.VisualFrameResult{
			FrameID:           s.frame.ID,
			RecordingID:       s.frame.RecordingID,
			RecordingTitle:    s.frame.RecordingTitle,
			FrameTimeSec:      s.frame.FrameTimeSec,
			FrameURL:          e.resolveFrameURL(ctx, s.frame.FrameURL),
			VisualDescription: s.frame.VisualDescription,
			OCRText:           s.frame.OCRText,
			Similarity:        s.similarity,
		})
	}

	return results
}

// resolveFrameURL converts a storage object path into a signed URL. Absolute
// URLs pass through, and signing failures fall back to the raw path.
func (e *Engine) resolveFrameURL(ctx context.Context, frameURL string) string {
	if e.storage == nil || strings.Contains(frameURL, "://") {
		return frameURL
	}

	signed, err := e.storage.SignedURL(frameURL, e.signedURLTTL)
	if err != nil {
		logging.From(ctx).Warn("failed to sign frame URL", "error", err, "object", frameURL)
		return frameURL
	}

	return signed
}

// fuse weights both modality lists and merges them into one ranking. The sort
// is stable so equal scores keep each modality's original relative order.
func fuse(transcripts []*model.TranscriptResult, visuals []*model.VisualFrameResult, audioWeight, visualWeight float64) []*model.CombinedResult {
	combined := make([]*model.CombinedResult, 0, len(transcripts)+len(visuals))

	for _, tr := range transcripts {
		combined = append(combined, &model.CombinedResult{
			Modality:   model.ModalityTranscript,
			FinalScore: tr.Similarity * audioWeight,
			Transcript: tr,
		})
	}
	for _, v := range visuals {
		combined = append(combined, &model.CombinedResult{
			Modality:   model.ModalityVisual,
			FinalScore: v.Similarity * visualWeight,
			Visual:     v,
		})
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].FinalScore > combined[j].FinalScore
	})

	return combined
}

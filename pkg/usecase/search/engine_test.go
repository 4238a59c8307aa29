package search_test

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/search"
	"google.golang.org/genai"
)

type mockGenAI struct {
	embedding []float32
	embedErr  error
}

func (m *mockGenAI) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return "", goerr.New("not used in search")
}

func (m *mockGenAI) Embedding(ctx context.Context, text string) ([]float32, error) {
	return m.embedding, m.embedErr
}

type mockRepository struct {
	transcripts   []*model.TranscriptResult
	transcriptErr error
	frames        []*model.Frame
	frameErr      error
	frameCalls    int
}

func (m *mockRepository) SearchTranscripts(ctx context.Context, embedding []float32, scope model.SearchScope, limit int) ([]*model.TranscriptResult, error) {
	return m.transcripts, m.transcriptErr
}

func (m *mockRepository) ListFrames(ctx context.Context, scope model.SearchScope) ([]*model.Frame, error) {
	m.frameCalls++
	return m.frames, m.frameErr
}

type mockStorage struct {
	signed map[string]string
}

func (m *mockStorage) SignedURL(object string, expires time.Duration) (string, error) {
	url, ok := m.signed[object]
	if !ok {
		return "", goerr.New("object not found", goerr.V("object", object))
	}
	return url, nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func transcript(id string, similarity float64) *model.TranscriptResult {
	return &model.TranscriptResult{
		ChunkID:        id,
		RecordingID:    "rec-1",
		RecordingTitle: "Weekly Sync",
		Text:           "chunk " + id,
		Similarity:     similarity,
		Timestamp:      12.5,
	}
}

func frame(id string, embedding []float32) *model.Frame {
	return &model.Frame{
		ID:                id,
		RecordingID:       "rec-1",
		RecordingTitle:    "Weekly Sync",
		FrameTimeSec:      30,
		FrameURL:          "https://frames.example.com/" + id + ".png",
		VisualDescription: "a slide",
		Embedding:         embedding,
	}
}

func TestSearchAppliesModalityWeights(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{transcript("c1", 0.92)},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	opts := search.NewOptions("org-1")
	opts.AudioWeight = 0.6
	opts.VisualWeight = 0.4

	result, err := engine.Search(context.Background(), "what was decided?", opts)
	gt.NoError(t, err)

	gt.Equal(t, len(result.CombinedResults), 1)
	gt.Equal(t, result.CombinedResults[0].Modality, model.ModalityTranscript)
	gt.True(t, math.Abs(result.CombinedResults[0].FinalScore-0.552) < 1e-9)
	gt.Equal(t, result.Metadata.AudioWeight, 0.6)
	gt.Equal(t, result.Metadata.VisualWeight, 0.4)
}

func TestSearchFiltersFramesBelowThreshold(t *testing.T) {
	repo := &mockRepository{
		frames: []*model.Frame{
			frame("f1", []float32{1, 0}),     // similarity 1.0
			frame("f2", []float32{0.8, 0.6}), // similarity 0.8
			frame("f3", []float32{0.6, 0.8}), // similarity 0.6, below threshold
		},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	result, err := engine.Search(context.Background(), "show the slide", search.NewOptions("org-1"))
	gt.NoError(t, err)

	gt.Equal(t, len(result.VisualResults), 2)
	gt.Equal(t, result.VisualResults[0].FrameID, "f1")
	gt.Equal(t, result.VisualResults[1].FrameID, "f2")
	gt.True(t, result.VisualResults[1].Similarity >= search.FrameRelevanceThreshold)
}

func TestSearchLimitTruncatesCombinedOnly(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{
			transcript("c1", 0.95),
			transcript("c2", 0.90),
			transcript("c3", 0.85),
		},
		frames: []*model.Frame{
			frame("f1", []float32{1, 0}),
			frame("f2", []float32{0.9, float32(math.Sqrt(1 - 0.81))}),
		},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	opts := search.NewOptions("org-1")
	opts.Limit = 3

	result, err := engine.Search(context.Background(), "everything", opts)
	gt.NoError(t, err)

	gt.Equal(t, len(result.CombinedResults), 3)
	for i := 1; i < len(result.CombinedResults); i++ {
		gt.True(t, result.CombinedResults[i-1].FinalScore >= result.CombinedResults[i].FinalScore)
	}

	// Per-modality lists are never truncated
	gt.Equal(t, len(result.TranscriptResults), 3)
	gt.Equal(t, len(result.VisualResults), 2)
	gt.Equal(t, result.Metadata.TranscriptCount, 3)
	gt.Equal(t, result.Metadata.VisualCount, 2)
	gt.Equal(t, result.Metadata.CombinedCount, 3)
}

func TestSearchFrameStoreErrorDegrades(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{transcript("c1", 0.9)},
		frameErr:    goerr.New("table unavailable"),
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	result, err := engine.Search(context.Background(), "what happened?", search.NewOptions("org-1"))
	gt.NoError(t, err)

	gt.Equal(t, len(result.VisualResults), 0)
	gt.Equal(t, len(result.TranscriptResults), 1)
	gt.Equal(t, len(result.CombinedResults), 1)
}

func TestSearchTranscriptErrorPropagates(t *testing.T) {
	repo := &mockRepository{
		transcriptErr: goerr.New("index offline"),
		frames:        []*model.Frame{frame("f1", []float32{1, 0})},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	_, err := engine.Search(context.Background(), "anything", search.NewOptions("org-1"))
	gt.Error(t, err)
}

func TestSearchIncludeFramesFalseSkipsFrameStore(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{transcript("c1", 0.9)},
		frames:      []*model.Frame{frame("f1", []float32{1, 0})},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	opts := search.NewOptions("org-1")
	opts.IncludeFrames = false

	result, err := engine.Search(context.Background(), "audio only", opts)
	gt.NoError(t, err)

	gt.Equal(t, repo.frameCalls, 0)
	gt.Equal(t, len(result.VisualResults), 0)
}

func TestSearchGlobalKillSwitchWinsOverIncludeFrames(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{transcript("c1", 0.9)},
		frames:      []*model.Frame{frame("f1", []float32{1, 0})},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	opts := search.NewOptions("org-1")
	opts.IncludeFrames = true
	opts.DisableVisual = true

	result, err := engine.Search(context.Background(), "audio only", opts)
	gt.NoError(t, err)

	gt.Equal(t, repo.frameCalls, 0)
	gt.Equal(t, len(result.VisualResults), 0)
}

func TestSearchOmitsAbsentOCRText(t *testing.T) {
	withOCR := frame("f1", []float32{1, 0})
	withOCR.OCRText = "Q3 revenue"
	withoutOCR := frame("f2", []float32{0.9, float32(math.Sqrt(1 - 0.81))})

	repo := &mockRepository{frames: []*model.Frame{withOCR, withoutOCR}}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	result, err := engine.Search(context.Background(), "revenue slide", search.NewOptions("org-1"))
	gt.NoError(t, err)
	gt.Equal(t, len(result.VisualResults), 2)

	raw, err := json.Marshal(result.VisualResults[0])
	gt.NoError(t, err)
	gt.True(t, strings.Contains(string(raw), "ocr_text"))

	raw, err = json.Marshal(result.VisualResults[1])
	gt.NoError(t, err)
	gt.True(t, !strings.Contains(string(raw), "ocr_text"))
}

func TestSearchResolvesFrameObjectPaths(t *testing.T) {
	stored := frame("f1", []float32{1, 0})
	stored.FrameURL = "org-1/rec-1/frames/000030.png"

	repo := &mockRepository{frames: []*model.Frame{stored}}
	st := &mockStorage{signed: map[string]string{
		"org-1/rec-1/frames/000030.png": "https://storage.example.com/signed/000030.png",
	}}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo, search.WithStorage(st))

	result, err := engine.Search(context.Background(), "the slide", search.NewOptions("org-1"))
	gt.NoError(t, err)

	gt.Equal(t, len(result.VisualResults), 1)
	gt.Equal(t, result.VisualResults[0].FrameURL, "https://storage.example.com/signed/000030.png")
}

func TestSearchStableTieOrder(t *testing.T) {
	repo := &mockRepository{
		transcripts: []*model.TranscriptResult{
			transcript("c1", 0.8),
			transcript("c2", 0.8),
		},
	}
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, repo)

	result, err := engine.Search(context.Background(), "tied", search.NewOptions("org-1"))
	gt.NoError(t, err)

	gt.Equal(t, result.CombinedResults[0].SourceID(), "c1")
	gt.Equal(t, result.CombinedResults[1].SourceID(), "c2")
}

func TestSearchRequiresOrgID(t *testing.T) {
	engine := search.NewEngine(&mockGenAI{embedding: []float32{1, 0}}, &mockRepository{})

	_, err := engine.Search(context.Background(), "query", search.Options{})
	gt.Error(t, err)
}

func TestSearchEmbeddingErrorPropagates(t *testing.T) {
	engine := search.NewEngine(&mockGenAI{embedErr: goerr.New("quota")}, &mockRepository{})

	_, err := engine.Search(context.Background(), "query", search.NewOptions("org-1"))
	gt.Error(t, err)
}

package search

import (
	"github.com/m-mizutani/kioku/pkg/model"
)

const (
	// DefaultAudioWeight and DefaultVisualWeight are the modality score
	// multipliers used when the caller does not override them. They are
	// passed through as given; no sum-to-1 constraint is enforced.
	DefaultAudioWeight  = 0.7
	DefaultVisualWeight = 0.3

	// FrameRelevanceThreshold is the minimum cosine similarity below which
	// a visual frame match is discarded.
	FrameRelevanceThreshold = 0.70
)

// Options configures one multimodal search call
type Options struct {
	// OrgID scopes both retrieval paths to one tenant. Required.
	OrgID string

	// RecordingIDs restricts both retrieval paths to a subset of recordings
	RecordingIDs []string

	AudioWeight  float64
	VisualWeight float64

	// Limit caps the combined result list after merging and sorting. It never
	// truncates the per-modality result lists. 0 means no limit.
	Limit int

	// TranscriptLimit caps the transcript vector search. 0 uses the
	// repository default.
	TranscriptLimit int

	// IncludeFrames enables the visual retrieval path
	IncludeFrames bool

	// DisableVisual is the process-wide visual search kill switch, carried as
	// explicit configuration rather than ambient state. It wins over
	// IncludeFrames.
	DisableVisual bool
}

// NewOptions returns Options with default weights and the visual path enabled
func NewOptions(orgID string) Options {
	return Options{
		OrgID:         orgID,
		AudioWeight:   DefaultAudioWeight,
		VisualWeight:  DefaultVisualWeight,
		IncludeFrames: true,
	}
}

// Metadata reports what one search actually did. Per-modality counts are
// pre-truncation; CombinedCount is post-truncation.
type Metadata struct {
	TranscriptCount int     `json:"transcript_count"`
	VisualCount     int     `json:"visual_count"`
	CombinedCount   int     `json:"combined_count"`
	AudioWeight     float64 `json:"audio_weight"`
	VisualWeight    float64 `json:"visual_weight"`
}

// Result is the outcome of one multimodal search
type Result struct {
	TranscriptResults []*model.TranscriptResult  `json:"transcript_results"`
	VisualResults     []*model.VisualFrameResult `json:"visual_results"`
	CombinedResults   []*model.CombinedResult    `json:"combined_results"`
	Metadata          Metadata                   `json:"metadata"`
}

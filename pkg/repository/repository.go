// Package repository provides access to the transcript vector index and the
// visual frame store.
package repository

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Repository is the retrieval storage interface. Both operations are scoped
// to one tenant via model.SearchScope.
type Repository interface {
	// SearchTranscripts performs vector search over transcript chunks and
	// returns matches scored and ordered by similarity (descending).
	SearchTranscripts(ctx context.Context, embedding []float32, scope model.SearchScope, limit int) ([]*model.TranscriptResult, error)

	// ListFrames retrieves candidate visual frames with their precomputed
	// embeddings. Scoring against the query embedding happens in the caller.
	ListFrames(ctx context.Context, scope model.SearchScope) ([]*model.Frame, error)
}

// DefaultTranscriptLimit is used when the caller does not specify a limit
// for transcript vector search.
const DefaultTranscriptLimit = 20

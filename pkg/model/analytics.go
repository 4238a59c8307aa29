package model

import (
	"time"

	"github.com/google/uuid"
)

// SearchEventID identifies one recorded search
type SearchEventID string

// NewSearchEventID generates a new unique SearchEventID
func NewSearchEventID() SearchEventID {
	return SearchEventID(uuid.New().String())
}

// SearchEvent is one search recorded to the analytics sink
type SearchEvent struct {
	ID              SearchEventID `bigquery:"id"`
	OrgID           string        `bigquery:"org_id"`
	Query           string        `bigquery:"query"`
	SubQueryCount   int           `bigquery:"sub_query_count"`
	TranscriptCount int           `bigquery:"transcript_count"`
	VisualCount     int           `bigquery:"visual_count"`
	CombinedCount   int           `bigquery:"combined_count"`
	AudioWeight     float64       `bigquery:"audio_weight"`
	VisualWeight    float64       `bigquery:"visual_weight"`
	TookMilliSec    int64         `bigquery:"took_ms"`
	CreatedAt       time.Time     `bigquery:"created_at"`
}

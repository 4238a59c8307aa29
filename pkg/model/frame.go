package model

// SearchScope restricts retrieval to one tenant and optionally to a subset of
// its recordings. OrgID is required for every retrieval path.
type SearchScope struct {
	OrgID        string
	RecordingIDs []string
}

// Frame is a stored video frame row with its precomputed visual embedding.
// FrameURL may be an absolute URL or a storage object path that the search
// engine resolves into a signed URL.
type Frame struct {
	ID                string
	RecordingID       string
	RecordingTitle    string
	FrameTimeSec      float64
	FrameURL          string
	VisualDescription string
	OCRText           string
	Embedding         []float32
}

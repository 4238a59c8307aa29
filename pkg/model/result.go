package model

// Modality identifies which retrieval channel produced a combined result
type Modality string

const (
	ModalityTranscript Modality = "transcript"
	ModalityVisual     Modality = "visual"
)

// TranscriptResult is a transcript chunk match returned by the vector index,
// already similarity-scored and ordered by the index.
type TranscriptResult struct {
	ChunkID        string  `json:"chunk_id"`
	RecordingID    string  `json:"recording_id"`
	RecordingTitle string  `json:"recording_title"`
	Text           string  `json:"text"`
	Similarity     float64 `json:"similarity"`
	Timestamp      float64 `json:"timestamp,omitempty"`
}

// VisualFrameResult is a visual frame match scored against the query embedding.
// OCRText is omitted entirely when the stored OCR text is absent.
type VisualFrameResult struct {
	FrameID           string  `json:"frame_id"`
	RecordingID       string  `json:"recording_id"`
	RecordingTitle    string  `json:"recording_title,omitempty"`
	FrameTimeSec      float64 `json:"frame_time_sec"`
	FrameURL          string  `json:"frame_url"`
	VisualDescription string  `json:"visual_description"`
	OCRText           string  `json:"ocr_text,omitempty"`
	Similarity        float64 `json:"similarity"`
}

// CombinedResult is a tagged union of a weighted transcript or visual frame
// match. Exactly one of Transcript/Visual is set, matching Modality.
// FinalScore is the source similarity multiplied by its modality weight.
type CombinedResult struct {
	Modality   Modality           `json:"modality"`
	FinalScore float64            `json:"final_score"`
	Transcript *TranscriptResult  `json:"transcript,omitempty"`
	Visual     *VisualFrameResult `json:"visual,omitempty"`
}

// RecordingID returns the recording the result belongs to, regardless of modality
func (x *CombinedResult) RecordingID() string {
	switch x.Modality {
	case ModalityTranscript:
		return x.Transcript.RecordingID
	case ModalityVisual:
		return x.Visual.RecordingID
	}
	return ""
}

// SourceID returns the per-modality unique identifier (chunk ID or frame ID)
// used for downstream deduplication and UI linking.
func (x *CombinedResult) SourceID() string {
	switch x.Modality {
	case ModalityTranscript:
		return x.Transcript.ChunkID
	case ModalityVisual:
		return x.Visual.FrameID
	}
	return ""
}

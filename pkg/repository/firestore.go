package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collTranscriptChunks = "transcript_chunks"
	collFrames           = "frames"

	distanceField = "vector_distance"
)

// firestoreRepo implements Repository using Firestore vector search
type firestoreRepo struct {
	client *firestore.Client
}

// NewFirestore creates a new Firestore-backed repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (Repository, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &firestoreRepo{client: client}, nil
}

type transcriptChunkDoc struct {
	OrgID          string  `firestore:"org_id"`
	RecordingID    string  `firestore:"recording_id"`
	RecordingTitle string  `firestore:"recording_title"`
	Text           string  `firestore:"text"`
	Timestamp      float64 `firestore:"timestamp"`
	Distance       float64 `firestore:"vector_distance"`
}

type frameDoc struct {
	OrgID             string             `firestore:"org_id"`
	RecordingID       string             `firestore:"recording_id"`
	RecordingTitle    string             `firestore:"recording_title"`
	FrameTimeSec      float64            `firestore:"frame_time_sec"`
	FrameURL          string             `firestore:"frame_url"`
	VisualDescription string             `firestore:"visual_description"`
	OCRText           string             `firestore:"ocr_text"`
	Embedding         firestore.Vector32 `firestore:"visual_embedding"`
}

func (r *firestoreRepo) SearchTranscripts(ctx context.Context, embedding []float32, scope model.SearchScope, limit int) ([]*model.TranscriptResult, error) {
	if scope.OrgID == "" {
		return nil, goerr.New("org ID is required for transcript search")
	}
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}

	q := r.client.Collection(collTranscriptChunks).Query.
		Where("org_id", "==", scope.OrgID)
	if len(scope.RecordingIDs) > 0 {
		q = q.Where("recording_id", "in", scope.RecordingIDs)
	}

	vq := q.FindNearest("embedding", firestore.Vector32(embedding), limit,
		firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.TranscriptResult, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to search transcript chunks",
				goerr.V("org_id", scope.OrgID))
		}

		var chunk transcriptChunkDoc
		if err := doc.DataTo(&chunk); err != nil {
			return nil, goerr.Wrap(err, "failed to decode transcript chunk",
				goerr.V("doc_id", doc.Ref.ID))
		}

		results = append(results, &model.TranscriptResult{
			ChunkID:        doc.Ref.ID,
			RecordingID:    chunk.RecordingID,
			RecordingTitle: chunk.RecordingTitle,
			Text:           chunk.Text,
			// FindNearest returns cosine distance; similarity is its complement
			Similarity: 1 - chunk.Distance,
			Timestamp:  chunk.Timestamp,
		})
	}

	return results, nil
}

func (r *firestoreRepo) ListFrames(ctx context.Context, scope model.SearchScope) ([]*model.Frame, error) {
	if scope.OrgID == "" {
		return nil, goerr.New("org ID is required for frame listing")
	}

	q := r.client.Collection(collFrames).Query.
		Where("org_id", "==", scope.OrgID)
	if len(scope.RecordingIDs) > 0 {
		q = q.Where("recording_id", "in", scope.RecordingIDs)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var frames []*model.Frame
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to list frames",
				goerr.V("org_id", scope.OrgID))
		}

		var f frameDoc
		if err := doc.DataTo(&f); err != nil {
			return nil, goerr.Wrap(err, "failed to decode frame",
				goerr.V("doc_id", doc.Ref.ID))
		}

		frames = append(frames, &model.Frame{
			ID:                doc.Ref.ID,
			RecordingID:       f.RecordingID,
			RecordingTitle:    f.RecordingTitle,
			FrameTimeSec:      f.FrameTimeSec,
			FrameURL:          f.FrameURL,
			VisualDescription: f.VisualDescription,
			OCRText:           f.OCRText,
			Embedding:         []float32(f.Embedding),
		})
	}

	return frames, nil
}

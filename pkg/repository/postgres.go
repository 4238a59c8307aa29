package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	pgvector "github.com/pgvector/pgvector-go"
)

// postgresRepo implements Repository using Postgres with the pgvector
// extension. Cosine distance queries use the `<=>` operator.
type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new Postgres/pgvector-backed repository
func NewPostgres(ctx context.Context, dsn string) (Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}

	return &postgresRepo{pool: pool}, nil
}

func (r *postgresRepo) SearchTranscripts(ctx context.Context, embedding []float32, scope model.SearchScope, limit int) ([]*model.TranscriptResult, error) {
	if scope.OrgID == "" {
		return nil, goerr.New("org ID is required for transcript search")
	}
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}

	query := `
		SELECT id, recording_id, recording_title, text, ts,
		       1 - (embedding <=> $1) AS similarity
		FROM transcript_chunks
		WHERE org_id = $2`
	args := []any{pgvector.NewVector(embedding), scope.OrgID}
	if len(scope.RecordingIDs) > 0 {
		query += ` AND recording_id = ANY($3)`
		args = append(args, scope.RecordingIDs)
	}
	query += ` ORDER BY embedding <=> $1 LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search transcript chunks",
			goerr.V("org_id", scope.OrgID))
	}
	defer rows.Close()

	results := make([]*model.TranscriptResult, 0, limit)
	for rows.Next() {
		var tr model.TranscriptResult
		if err := rows.Scan(&tr.ChunkID, &tr.RecordingID, &tr.RecordingTitle, &tr.Text, &tr.Timestamp, &tr.Similarity); err != nil {
			return nil, goerr.Wrap(err, "failed to scan transcript chunk")
		}
		results = append(results, &tr)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate transcript chunks")
	}

	return results, nil
}

func (r *postgresRepo) ListFrames(ctx context.Context, scope model.SearchScope) ([]*model.Frame, error) {
	if scope.OrgID == "" {
		return nil, goerr.New("org ID is required for frame listing")
	}

	query := `
		SELECT id, recording_id, recording_title, frame_time_sec,
		       frame_url, visual_description, ocr_text, visual_embedding
		FROM frames
		WHERE org_id = $1`
	args := []any{scope.OrgID}
	if len(scope.RecordingIDs) > 0 {
		query += ` AND recording_id = ANY($2)`
		args = append(args, scope.RecordingIDs)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list frames",
			goerr.V("org_id", scope.OrgID))
	}
	defer rows.Close()

	var frames []*model.Frame
	for rows.Next() {
		var (
			f       model.Frame
			title   *string
			ocrText *string
			vec     pgvector.Vector
		)
		if err := rows.Scan(&f.ID, &f.RecordingID, &title, &f.FrameTimeSec, &f.FrameURL, &f.VisualDescription, &ocrText, &vec); err != nil {
			return nil, goerr.Wrap(err, "failed to scan frame")
		}
		if title != nil {
			f.RecordingTitle = *title
		}
		if ocrText != nil {
			f.OCRText = *ocrText
		}
		f.Embedding = vec.Slice()
		frames = append(frames, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate frames")
	}

	return frames, nil
}

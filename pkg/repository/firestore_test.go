package repository_test

import (
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
)

func setupFirestore(t *testing.T) (repository.Repository, string) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	orgID := os.Getenv("TEST_KIOKU_ORG_ID")

	if projectID == "" || databaseID == "" || orgID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID, TEST_FIRESTORE_DATABASE_ID and TEST_KIOKU_ORG_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)

	return repo, orgID
}

func randomEmbedding(dim int) []float32 {
	rng := rand.New(rand.NewSource(42))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.Float64())
	}
	return v
}

func TestFirestoreSearchTranscripts(t *testing.T) {
	repo, orgID := setupFirestore(t)
	ctx := context.Background()

	results, err := repo.SearchTranscripts(ctx, randomEmbedding(768), model.SearchScope{OrgID: orgID}, 5)
	gt.NoError(t, err)

	if len(results) > 5 {
		t.Errorf("expected at most 5 results, got %d", len(results))
	}

	// FindNearest returns nearest-first, so similarity must be descending
	for i := 1; i < len(results); i++ {
		if results[i-1].Similarity < results[i].Similarity {
			t.Errorf("results not ordered by similarity: [%d]=%v < [%d]=%v",
				i-1, results[i-1].Similarity, i, results[i].Similarity)
		}
	}
}

func TestFirestoreSearchTranscriptsRequiresOrg(t *testing.T) {
	repo, _ := setupFirestore(t)
	ctx := context.Background()

	_, err := repo.SearchTranscripts(ctx, randomEmbedding(768), model.SearchScope{}, 5)
	gt.Error(t, err)
}

func TestFirestoreListFrames(t *testing.T) {
	repo, orgID := setupFirestore(t)
	ctx := context.Background()

	frames, err := repo.ListFrames(ctx, model.SearchScope{OrgID: orgID})
	gt.NoError(t, err)

	for _, f := range frames {
		gt.V(t, f.ID).NotEqual("")
		gt.Equal(t, len(f.Embedding) > 0, true)
	}
}

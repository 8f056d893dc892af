package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/repository"
)

func TestFirestorePersister(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID or TEST_FIRESTORE_DATABASE_ID is not set")
	}

	ctx := context.Background()
	persister, err := repository.NewFirestore(ctx, projectID, databaseID)
	gt.NoError(t, err)
	defer persister.Close()

	gt.NoError(t, persister.Save(ctx, repository.Seed()))

	snapshot, err := persister.Load(ctx)
	gt.NoError(t, err)
	gt.V(t, snapshot).NotNil()
	gt.True(t, len(snapshot.Products) >= 2)
	gt.True(t, len(snapshot.BlogPosts) >= 1)
}

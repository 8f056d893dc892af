package archive_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/archive"
	"github.com/m-mizutani/huddle/pkg/model"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT_ID")
	datasetID := os.Getenv("TEST_BIGQUERY_DATASET_ID")
	if projectID == "" || datasetID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT_ID or TEST_BIGQUERY_DATASET_ID is not set")
	}

	ctx := context.Background()
	sink, err := archive.NewBigQuery(ctx, projectID, datasetID, "huddle_messages_test")
	gt.NoError(t, err)
	defer sink.Close()

	rec, err := archive.NewRecord(model.NewUserMessage("alice", "archived from test"))
	gt.NoError(t, err)
	gt.NoError(t, sink.Write(ctx, rec))
}

package archive

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
)

// BigQuery streams messages into a BigQuery table
type BigQuery struct {
	client   *bigquery.Client
	table    *bigquery.Table
	inserter *bigquery.Inserter
}

// NewBigQuery connects to the table and creates it when it does not exist
func NewBigQuery(ctx context.Context, projectID, datasetID, tableID string) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	table := client.Dataset(datasetID).Table(tableID)
	if err := ensureTable(ctx, table); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to prepare archive table",
			goerr.V("project", projectID),
			goerr.V("dataset", datasetID),
			goerr.V("table", tableID))
	}

	return &BigQuery{
		client:   client,
		table:    table,
		inserter: table.Inserter(),
	}, nil
}

func ensureTable(ctx context.Context, table *bigquery.Table) error {
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return goerr.Wrap(err, "failed to get table metadata")
	}

	schema, err := bigquery.InferSchema(Record{})
	if err != nil {
		return goerr.Wrap(err, "failed to infer archive schema")
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "timestamp",
		},
	}); err != nil {
		return goerr.Wrap(err, "failed to create table")
	}
	return nil
}

func (b *BigQuery) Write(ctx context.Context, rec *Record) error {
	if err := b.inserter.Put(ctx, rec); err != nil {
		return goerr.Wrap(err, "failed to insert message", goerr.V("id", rec.ID))
	}
	return nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

package adapter

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
)

// Analytics is the search event sink used for usage reporting
type Analytics interface {
	// InsertSearchEvent records one search to the analytics table
	InsertSearchEvent(ctx context.Context, ev *model.SearchEvent) error

	// RecentSearchEvents retrieves the latest recorded searches, newest first
	RecentSearchEvents(ctx context.Context, orgID string, limit int) ([]*model.SearchEvent, error)
}

type bigqueryClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// BigQueryOption is a functional option for the BigQuery analytics client
type BigQueryOption func(*bigqueryClient)

// WithAnalyticsTable overrides the default dataset/table
func WithAnalyticsTable(dataset, table string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.dataset = dataset
		bq.table = table
	}
}

// NewBigQuery creates a new BigQuery-backed analytics sink
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (Analytics, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:  client,
		dataset: "kioku",
		table:   "search_events",
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *bigqueryClient) InsertSearchEvent(ctx context.Context, ev *model.SearchEvent) error {
	if ev.ID == "" {
		ev.ID = model.NewSearchEventID()
	}

	inserter := bq.client.Dataset(bq.dataset).Table(bq.table).Inserter()
	if err := inserter.Put(ctx, ev); err != nil {
		return goerr.Wrap(err, "failed to insert search event", goerr.V("id", ev.ID))
	}

	return nil
}

func (bq *bigqueryClient) RecentSearchEvents(ctx context.Context, orgID string, limit int) ([]*model.SearchEvent, error) {
	q := bq.client.Query(fmt.Sprintf(
		"SELECT * FROM `%s.%s` WHERE org_id = @org_id ORDER BY created_at DESC LIMIT @limit",
		bq.dataset, bq.table,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query search events")
	}

	events := make([]*model.SearchEvent, 0, limit)
	for {
		var ev model.SearchEvent
		err := it.Next(&ev)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate search events")
		}
		events = append(events, &ev)
	}

	return events, nil
}

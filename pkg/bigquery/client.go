package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TrainingRow is one labelled example for the retraining pipeline: the
// feature vector the model saw plus what actually sold.
type TrainingRow struct {
	FeedbackID            string    `bigquery:"feedback_id"`
	RecommendationID      string    `bigquery:"recommendation_id"`
	VendorID              string    `bigquery:"vendor_id"`
	ProductID             string    `bigquery:"product_id"`
	VenueID               string    `bigquery:"venue_id"`
	MarketDate            string    `bigquery:"market_date"`
	FeatureSchemaVersion  string    `bigquery:"feature_schema_version"`
	Features              []float64 `bigquery:"features"`
	ModelVersion          string    `bigquery:"model_version"`
	RecommendedQuantity   int64     `bigquery:"recommended_quantity"`
	ActualQuantitySold    int64     `bigquery:"actual_quantity_sold"`
	ActualQuantityBrought int64     `bigquery:"actual_quantity_brought"`
	VariancePercentage    float64   `bigquery:"variance_percentage"`
	Rating                int64     `bigquery:"rating"`
	RecordedAt            time.Time `bigquery:"recorded_at"`
}

type Client struct {
	client    *bigquery.Client
	dataset   *bigquery.Dataset
	projectID string
	cfg       config.BigQueryConfig
}

// NewClient creates a BigQuery client and verifies the dataset and training table.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	if strings.TrimSpace(cfg.TrainingTable) == "" {
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	client := &Client{
		client:    bqClient,
		dataset:   bqClient.Dataset(datasetID),
		projectID: projectID,
		cfg:       cfg,
	}
	if err := client.ensureDatasetAndTable(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "bigquery client initialized")
	}
	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func (c *Client) ensureDatasetAndTable(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	table := strings.TrimSpace(c.cfg.TrainingTable)
	if _, err := c.dataset.Table(table).Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("table %q does not exist", table)
		}
		return fmt.Errorf("checking table %q: %w", table, err)
	}
	return nil
}

// Ping verifies the dataset and table are accessible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensureDatasetAndTable(ctx)
}

// InsertTrainingRows streams rows into the training table. The feedback id is
// the insert id, so a retried batch does not duplicate rows.
func (c *Client) InsertTrainingRows(ctx context.Context, rows []TrainingRow) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(strings.TrimSpace(c.cfg.TrainingTable)).Inserter().Put(ctx, savers(rows))
}

func savers(rows []TrainingRow) []*bigquery.StructSaver {
	out := make([]*bigquery.StructSaver, 0, len(rows))
	for i := range rows {
		out = append(out, &bigquery.StructSaver{
			Struct:   rows[i],
			InsertID: rows[i].FeedbackID,
		})
	}
	return out
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}

package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
)

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	opts := clientOptions(config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	})
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected 0 options when no credentials provided, got %d", len(opts))
	}
}

func TestSaversUseFeedbackIDAsInsertID(t *testing.T) {
	rows := []TrainingRow{{FeedbackID: "fb-1"}, {FeedbackID: "fb-2"}}
	got := savers(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 savers, got %d", len(got))
	}
	if got[1].InsertID != "fb-2" {
		t.Fatalf("expected insert id fb-2, got %s", got[1].InsertID)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", TrainingTable: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{TrainingTable: "t"}, nil); !errors.Is(err, errDatasetRequired) {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatal("expected wrapped 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a not-found")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.InsertTrainingRows(context.Background(), []TrainingRow{{}}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

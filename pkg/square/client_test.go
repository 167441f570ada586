package square

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), config.SquareConfig{
		Env:               "sandbox",
		ApplicationID:     "sq0idp-app",
		ApplicationSecret: "sq0csp-secret",
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		MaxRetries:        1,
	}, logger.Nop(), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("refresh_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("merchant_id", "M1"); v != "M1" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	err := sqcore.NewAPIError(http.StatusUnauthorized, errors.New(`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`))
	mapped := pkgerrors.As(c.mapSquareError(err, "operation"))
	require.NotNil(t, mapped)
	assert.Equal(t, pkgerrors.CodeUnauthorized, mapped.Code())

	plain := pkgerrors.As(c.mapSquareError(errors.New("dial tcp: refused"), "operation"))
	require.NotNil(t, plain)
	assert.Equal(t, pkgerrors.CodeDependency, plain.Code())
}

func TestExtractSquareErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	got := c.extractSquareErrors(sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload)))
	require.Len(t, got, 1)
	assert.Equal(t, sq.ErrorCodeBadRequest, got[0].GetCode())
}

func TestNewClientRejectsUnknownEnvironment(t *testing.T) {
	_, err := NewClient(context.Background(), config.SquareConfig{Env: "staging"}, logger.Nop())
	require.ErrorIs(t, err, errInvalidSquareEnv)

	_, err = NewClient(context.Background(), config.SquareConfig{}, nil)
	require.ErrorIs(t, err, errLoggerRequired)
}

func TestListCatalogItemsFollowsCursor(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/catalog/search", r.URL.Path)
		assert.Equal(t, "Bearer merchant-token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		calls++
		w.Header().Set("Content-Type", "application/json")
		if !strings.Contains(string(body), `"cursor"`) {
			_, _ = w.Write([]byte(`{"objects":[{"type":"ITEM","id":"ITEM1","item_data":{"name":"Wildflower Honey","variations":[
				{"type":"ITEM_VARIATION","id":"VAR1","item_variation_data":{"name":"16oz","price_money":{"amount":1200,"currency":"USD"}}},
				{"type":"ITEM_VARIATION","id":"VAR2","item_variation_data":{"name":"8oz","price_money":{"amount":699,"currency":"USD"}}}
			]}}],"cursor":"page2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"objects":[
			{"type":"ITEM","id":"ITEM2","item_data":{"name":"Sourdough","variations":[{"type":"ITEM_VARIATION","id":"VAR3","item_variation_data":{"price_money":{"amount":800,"currency":"USD"}}}]}},
			{"type":"ITEM","id":"GONE","is_deleted":true,"item_data":{"name":"Old"}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.ListCatalogItems(context.Background(), "merchant-token")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, items, 2)
	assert.Equal(t, "Wildflower Honey", items[0].Name)
	assert.Equal(t, "VAR2", items[0].Variations[0].ID, "cheapest variation first")
	assert.Equal(t, int64(699), items[0].Variations[0].PriceCents)

	index := Catalog{Items: items}.VariationIndex()
	assert.Equal(t, "ITEM1", index["VAR1"])
	assert.Equal(t, "ITEM2", index["VAR3"])
}

func TestListCatalogItemsRequiresToken(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.ListCatalogItems(context.Background(), " ")
	require.ErrorIs(t, err, errAccessTokenRequired)
}

func TestSearchCompletedOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/orders/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{"LOC1"}, body["location_ids"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orders":[{
			"id":"ORD1","location_id":"LOC1","state":"COMPLETED","closed_at":"2026-05-02T15:04:05Z",
			"total_money":{"amount":2598,"currency":"USD"},
			"line_items":[{"catalog_object_id":"VAR1","name":"Honey","quantity":"2","base_price_money":{"amount":1299,"currency":"USD"}}]
		}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	orders, err := c.SearchCompletedOrders(context.Background(), "tok", OrderSearchParams{
		LocationIDs: []string{"LOC1"},
		ClosedFrom:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD1", orders[0].ID)
	assert.Equal(t, int64(2598), orders[0].TotalCents)
	assert.Equal(t, time.Date(2026, 5, 2, 15, 4, 5, 0, time.UTC), orders[0].ClosedAt)
	require.Len(t, orders[0].LineItems, 1)
	assert.Equal(t, 2, orders[0].LineItems[0].Quantity)
	assert.Equal(t, int64(1299), orders[0].LineItems[0].UnitPriceCents)

	_, err = c.SearchCompletedOrders(context.Background(), "tok", OrderSearchParams{})
	require.Error(t, err)
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 3, parseQuantity("3"))
	assert.Equal(t, 2, parseQuantity("1.5"))
	assert.Equal(t, 0, parseQuantity("abc"))
	assert.Equal(t, 0, parseQuantity("-1"))
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh_token", body["grant_type"])
		assert.Equal(t, "old-refresh", body["refresh_token"])
		assert.Equal(t, "sq0idp-app", body["client_id"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"bearer","expires_at":"2026-11-14T00:00:00Z","merchant_id":"M1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	grant, err := c.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", grant.AccessToken)
	assert.Equal(t, "old-refresh", grant.RefreshToken, "kept when Square does not rotate it")
	assert.Equal(t, time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC), grant.ExpiresAt)
	assert.Equal(t, "M1", grant.MerchantID)
}

func TestRefreshTokenRequiresApplicationCredentials(t *testing.T) {
	c, err := NewClient(context.Background(), config.SquareConfig{}, logger.Nop())
	require.NoError(t, err)
	_, err = c.RefreshToken(context.Background(), "r")
	require.ErrorIs(t, err, errApplicationCredentials)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, NeedsRefresh(now.Add(4*time.Minute), now, 5*time.Minute))
	assert.True(t, NeedsRefresh(now.Add(5*time.Minute), now, 5*time.Minute))
	assert.False(t, NeedsRefresh(now.Add(6*time.Minute), now, 5*time.Minute))
	assert.False(t, NeedsRefresh(time.Time{}, now, 5*time.Minute))
}

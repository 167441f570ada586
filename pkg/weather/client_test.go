package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/cache"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, store cache.Store) *adapter.Fetcher[types.WeatherSnapshot] {
	t.Helper()
	f, err := adapter.NewFetcher[types.WeatherSnapshot](adapter.Options{
		Name:       "weather",
		Timeout:    time.Second,
		MaxRetries: 1,
		Backoff:    time.Millisecond,
		TTL:        3 * time.Hour,
		StaleTTL:   24 * time.Hour,
	}, store, nil)
	require.NoError(t, err)
	return f
}

// Saturday 2026-06-06 in UTC-4; local noon is 16:00 UTC.
var marketDate = time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC)

func forecastBody() string {
	noonUTC := time.Date(2026, 6, 6, 16, 0, 0, 0, time.UTC).Unix()
	return fmt.Sprintf(`{
		"city": {"timezone": -14400},
		"list": [
			{"dt": %d, "main": {"temp": 64.24}, "weather": [{"main": "Clouds"}], "pop": 0.1},
			{"dt": %d, "main": {"temp": 78.36}, "weather": [{"main": "Rain"}], "pop": 0.72},
			{"dt": %d, "main": {"temp": 70.0}, "weather": [{"main": "Clear"}], "pop": 0}
		]
	}`, noonUTC-6*3600, noonUTC-3600, noonUTC+9*3600)
}

func TestForecastPicksSlotNearestLocalNoon(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, forecastPath, r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(forecastBody()))
	}))
	defer srv.Close()

	client, err := NewClient("owm-key", newFetcher(t, cache.NewMemory(nil)), WithBaseURL(srv.URL))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Latitude: 40.7128, Longitude: -74.006, Date: marketDate})
	require.False(t, res.Degraded)
	require.NotNil(t, res.Value)
	assert.Equal(t, 78.4, res.Value.TempF)
	assert.Equal(t, 0.72, res.Value.PrecipitationProbability)
	assert.Equal(t, "rain", res.Value.Conditions)
	assert.True(t, res.Value.IsRain())
	assert.Contains(t, gotQuery, "appid=owm-key")
	assert.Contains(t, gotQuery, "units=imperial")
}

func TestForecastOutsideHorizonIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(forecastBody()))
	}))
	defer srv.Close()

	client, err := NewClient("k", newFetcher(t, cache.NewMemory(nil)), WithBaseURL(srv.URL))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Date: marketDate.AddDate(0, 0, 10)})
	assert.False(t, res.Degraded)
	assert.Nil(t, res.Value)
}

func TestFetchDegradesOnServerErrorAndServesStale(t *testing.T) {
	var failing atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(forecastBody()))
	}))
	defer srv.Close()

	now := time.Date(2026, 6, 5, 8, 0, 0, 0, time.UTC)
	store := cache.NewMemory(func() time.Time { return now })
	client, err := NewClient("k", newFetcher(t, store), WithBaseURL(srv.URL))
	require.NoError(t, err)

	params := Params{Latitude: 40.71, Longitude: -74.0, Date: marketDate}
	require.NotNil(t, client.Fetch(context.Background(), params).Value)

	now = now.Add(4 * time.Hour)
	failing.Store(true)
	res := client.Fetch(context.Background(), params)
	assert.True(t, res.Degraded)
	assert.True(t, res.Stale)
	require.NotNil(t, res.Value)
	assert.Equal(t, "rain", res.Value.Conditions)
	assert.Equal(t, int32(3), hits.Load(), "initial call, then one call plus one retry")
}

func TestFetchDoesNotRetryAuthErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient("bad", newFetcher(t, cache.NewMemory(nil)), WithBaseURL(srv.URL))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Date: marketDate})
	assert.True(t, res.Degraded)
	assert.Nil(t, res.Value)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNilClientIsDegraded(t *testing.T) {
	var client *Client
	res := client.Fetch(context.Background(), Params{Date: marketDate})
	assert.True(t, res.Degraded)
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(" ", newFetcher(t, cache.NewMemory(nil)))
	require.Error(t, err)
	_, err = NewClient("k", nil)
	require.Error(t, err)
}

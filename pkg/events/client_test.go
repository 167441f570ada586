package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/cache"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
)

var festivalDay = time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)

func newFetcher(t *testing.T) *adapter.Fetcher[types.EventSnapshot] {
	t.Helper()
	f, err := adapter.NewFetcher[types.EventSnapshot](adapter.Options{
		Name:     "events",
		Timeout:  time.Second,
		Backoff:  time.Millisecond,
		TTL:      6 * time.Hour,
		StaleTTL: 24 * time.Hour,
	}, cache.NewMemory(nil), nil)
	require.NoError(t, err)
	return f
}

func TestSearchSumsAttendance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer phq", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-10-03", r.URL.Query().Get("active.gte"))
		assert.Contains(t, r.URL.Query().Get("within"), "5mi@")
		_, _ = w.Write([]byte(`{"count":2,"results":[
			{"title":"Jazz in the Park","phq_attendance":650},
			{"title":"Book Club","phq_attendance":null}
		]}`))
	}))
	defer srv.Close()

	client, err := NewClient("phq", newFetcher(t), WithBaseURL(srv.URL))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Latitude: 40.7, Longitude: -74.0, Date: festivalDay})
	require.False(t, res.Degraded)
	require.NotNil(t, res.Value)
	assert.True(t, res.Value.IsSpecialEvent)
	assert.Equal(t, 650, res.Value.ExpectedAttendance)
	assert.Equal(t, []string{"Jazz in the Park", "Book Club"}, res.Value.Names)
}

func TestFetchMergesCalendarWhenDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cal, err := ParseCalendar([]byte(calendarYAML))
	require.NoError(t, err)
	client, err := NewClient("phq", newFetcher(t), WithBaseURL(srv.URL), WithCalendar(cal))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Latitude: 40.7128, Longitude: -74.006, Date: festivalDay})
	assert.True(t, res.Degraded)
	require.NotNil(t, res.Value)
	assert.True(t, res.Value.IsSpecialEvent)
	assert.Equal(t, 4000, res.Value.ExpectedAttendance)

	quiet := client.Fetch(context.Background(), Params{Date: festivalDay.AddDate(0, 0, 1)})
	assert.True(t, quiet.Degraded)
	assert.Nil(t, quiet.Value)
}

func TestFetchWithoutAPIKeyUsesCalendarOnly(t *testing.T) {
	cal, err := ParseCalendar([]byte(calendarYAML))
	require.NoError(t, err)
	client, err := NewClient("", nil, WithCalendar(cal))
	require.NoError(t, err)

	res := client.Fetch(context.Background(), Params{Date: time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)})
	assert.False(t, res.Degraded)
	require.NotNil(t, res.Value)
	assert.Equal(t, []string{"Independence Day"}, res.Value.Names)

	none := client.Fetch(context.Background(), Params{Date: festivalDay.AddDate(0, 1, 0)})
	require.NotNil(t, none.Value)
	assert.False(t, none.Value.IsSpecialEvent)
}

func TestSearchRejectsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient("bad", newFetcher(t), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.Search(context.Background(), Params{Date: festivalDay})
	require.Error(t, err)
}

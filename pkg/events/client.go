package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
)

const (
	defaultBaseURL              = "https://api.predicthq.com"
	searchPath                  = "/v1/events/"
	responseBodyReadLimit int64 = 1024
	defaultRadiusMiles          = 5

	// SpecialEventAttendance is the combined attendance above which nearby
	// API events count as a special event.
	SpecialEventAttendance = 500
)

var searchCategories = "community,concerts,conferences,expos,festivals,performing-arts,sports"

// Params identifies a venue/date lookup.
type Params struct {
	Latitude  float64
	Longitude float64
	Date      time.Time
}

func (p Params) cacheKey(radius int) string {
	return fmt.Sprintf("%.2f,%.2f:%dmi:%s", p.Latitude, p.Longitude, radius, p.Date.Format(time.DateOnly))
}

// Client merges a PredictHQ-style search with the local calendar.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	radiusMiles int
	fetcher     *adapter.Fetcher[types.EventSnapshot]
	calendar    *Calendar
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithRadiusMiles(miles int) Option {
	return func(c *Client) {
		if miles > 0 {
			c.radiusMiles = miles
		}
	}
}

// WithCalendar merges calendar entries into every result.
func WithCalendar(cal *Calendar) Option {
	return func(c *Client) {
		c.calendar = cal
	}
}

// NewClient builds the events client. An empty apiKey is allowed; the client
// then answers from the calendar only.
func NewClient(apiKey string, fetcher *adapter.Fetcher[types.EventSnapshot], opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey != "" && fetcher == nil {
		return nil, errors.New("events fetcher is required when an api key is set")
	}
	client := &Client{
		apiKey:      trimmedKey,
		baseURL:     defaultBaseURL,
		radiusMiles: defaultRadiusMiles,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		fetcher:     fetcher,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Fetch returns nearby events for the market date. Calendar entries are merged
// even when the API call is degraded.
func (c *Client) Fetch(ctx context.Context, p Params) adapter.Result[types.EventSnapshot] {
	if c == nil {
		return adapter.Result[types.EventSnapshot]{Degraded: true}
	}
	local := c.calendar.Lookup(p.Date, p.Latitude, p.Longitude)
	if c.apiKey == "" {
		return adapter.Result[types.EventSnapshot]{Value: &local}
	}

	res := c.fetcher.Fetch(ctx, p.cacheKey(c.radiusMiles), func(ctx context.Context) (*types.EventSnapshot, error) {
		return c.Search(ctx, p)
	})
	merged := local
	if res.Value != nil {
		merged = res.Value.Merge(local)
	}
	if res.Value == nil && res.Degraded && len(local.Names) == 0 {
		return res
	}
	res.Value = &merged
	return res
}

type searchResponse struct {
	Count   int `json:"count"`
	Results []struct {
		Title         string `json:"title"`
		Category      string `json:"category"`
		Rank          int    `json:"rank"`
		PHQAttendance *int   `json:"phq_attendance"`
	} `json:"results"`
}

// Search performs one uncached API call.
func (c *Client) Search(ctx context.Context, p Params) (*types.EventSnapshot, error) {
	day := p.Date.Format(time.DateOnly)
	q := url.Values{}
	q.Set("within", fmt.Sprintf("%dmi@%.6f,%.6f", c.radiusMiles, p.Latitude, p.Longitude))
	q.Set("active.gte", day)
	q.Set("active.lte", day)
	q.Set("category", searchCategories)
	q.Set("sort", "-phq_attendance")
	q.Set("limit", "50")
	endpoint := strings.TrimRight(c.baseURL, "/") + searchPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, adapter.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build events request"))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute events request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		err := pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "events request failed")
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, adapter.Permanent(err)
		}
		return nil, err
	}

	var apiResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode events response")
	}

	snap := types.EventSnapshot{}
	for _, result := range apiResp.Results {
		if result.PHQAttendance != nil {
			snap.ExpectedAttendance += *result.PHQAttendance
		}
		if result.Title != "" {
			snap.Names = append(snap.Names, result.Title)
		}
	}
	snap.IsSpecialEvent = snap.ExpectedAttendance >= SpecialEventAttendance
	return &snap, nil
}

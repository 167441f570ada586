package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/types"
)

const (
	defaultBaseURL              = "https://api.openweathermap.org"
	forecastPath                = "/data/2.5/forecast"
	responseBodyReadLimit int64 = 1024
	// slots further than this from local noon are outside the forecast horizon
	maxSlotDistance = 12 * time.Hour
)

var errAPIKeyRequired = errors.New("weather api key is required")

// Params identifies one venue/date forecast.
type Params struct {
	Latitude  float64
	Longitude float64
	Date      time.Time
}

func (p Params) cacheKey() string {
	return fmt.Sprintf("%.2f,%.2f:%s", p.Latitude, p.Longitude, p.Date.Format(time.DateOnly))
}

// Client calls an OpenWeatherMap-compatible 5 day / 3 hour forecast API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fetcher    *adapter.Fetcher[types.WeatherSnapshot]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the weather client. The fetcher supplies the timeout,
// retry and cache policy.
func NewClient(apiKey string, fetcher *adapter.Fetcher[types.WeatherSnapshot], opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	if fetcher == nil {
		return nil, errors.New("weather fetcher is required")
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		fetcher:    fetcher,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Fetch returns the snapshot for the market date. A nil client is treated as
// an unavailable dependency.
func (c *Client) Fetch(ctx context.Context, p Params) adapter.Result[types.WeatherSnapshot] {
	if c == nil {
		return adapter.Result[types.WeatherSnapshot]{Degraded: true}
	}
	return c.fetcher.Fetch(ctx, p.cacheKey(), func(ctx context.Context) (*types.WeatherSnapshot, error) {
		return c.Forecast(ctx, p)
	})
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
		Pop float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

// Forecast performs one uncached call. It returns nil without error when the
// date is outside the forecast horizon.
func (c *Client) Forecast(ctx context.Context, p Params) (*types.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(p.Longitude, 'f', 4, 64))
	q.Set("units", "imperial")
	q.Set("appid", c.apiKey)
	endpoint := strings.TrimRight(c.baseURL, "/") + forecastPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, adapter.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build forecast request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute forecast request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		err := pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "forecast request failed")
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, adapter.Permanent(err)
		}
		return nil, err
	}

	var apiResp forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode forecast response")
	}
	return pickSlot(apiResp, p.Date), nil
}

// pickSlot selects the slot closest to local noon on date.
func pickSlot(resp forecastResponse, date time.Time) *types.WeatherSnapshot {
	zone := time.FixedZone("venue", resp.City.Timezone)
	y, m, d := date.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, zone)

	best := -1
	bestDist := time.Duration(math.MaxInt64)
	for i, slot := range resp.List {
		dist := time.Unix(slot.Dt, 0).Sub(noon).Abs()
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 || bestDist > maxSlotDistance {
		return nil
	}

	slot := resp.List[best]
	conditions := "clear"
	if len(slot.Weather) > 0 && slot.Weather[0].Main != "" {
		conditions = strings.ToLower(slot.Weather[0].Main)
	}
	return &types.WeatherSnapshot{
		TempF:                    math.Round(slot.Main.Temp*10) / 10,
		PrecipitationProbability: slot.Pop,
		Conditions:               conditions,
		SourceTime:               time.Unix(slot.Dt, 0).UTC(),
	}
}

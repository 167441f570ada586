package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/marketprep-backend/pkg/adapter"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const (
	sandboxEnv    = config.SquareEnvSandbox
	productionEnv = config.SquareEnvProduction
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client wraps the Square SDK for merchant-scoped calls. Access tokens are
// per vendor, so each call builds a short-lived SDK client around one token.
type Client struct {
	environment       string
	baseURL           string
	applicationID     string
	applicationSecret string
	timeout           time.Duration
	maxRetries        uint64
	backoff           time.Duration
	httpClient        *http.Client
	logger            *logger.Logger
	catalog           *adapter.Fetcher[Catalog]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the transport handed to the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCatalogFetcher caches catalog listings behind the adapter contract.
func WithCatalogFetcher(f *adapter.Fetcher[Catalog]) Option {
	return func(c *Client) {
		c.catalog = f
	}
}

// WithBackoff sets the base retry backoff for order and token calls.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// NewClient validates the Square settings. Application credentials are only
// required for token refresh.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = baseURLs[env]
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		environment:       env,
		baseURL:           baseURL,
		applicationID:     strings.TrimSpace(cfg.ApplicationID),
		applicationSecret: strings.TrimSpace(cfg.ApplicationSecret),
		timeout:           timeout,
		maxRetries:        cfg.MaxRetries,
		backoff:           250 * time.Millisecond,
		httpClient:        &http.Client{Timeout: timeout},
		logger:            logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	logg.Info(logg.WithField(ctx, "environment", env), "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) sdk(accessToken string) (*sqclient.Client, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	return sqclient.NewClient(
		sqoption.WithBaseURL(c.baseURL),
		sqoption.WithToken(token),
		sqoption.WithHTTPClient(c.httpClient),
		sqoption.WithMaxAttempts(1),
	), nil
}

// do runs fn under the per-attempt timeout, retrying transport and 5xx/429
// failures with exponential backoff.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		mapped := c.mapSquareError(err, strings.ReplaceAll(op, "_", " "))
		if pkgerrors.IsCode(mapped, pkgerrors.CodeDependency) || pkgerrors.IsCode(mapped, pkgerrors.CodeRateLimit) {
			return retry.RetryableError(mapped)
		}
		return mapped
	})
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("square %s failed", op))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
			if sqErr.Category == sq.ErrorCategoryRateLimitError {
				code = pkgerrors.CodeRateLimit
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}

// reshape converts an SDK value into a local wire struct through its JSON
// form, which is stable across SDK releases.
func reshape(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

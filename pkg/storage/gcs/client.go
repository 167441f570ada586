package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const (
	tokenEndpoint   = "https://oauth2.googleapis.com/token"
	scope           = "https://www.googleapis.com/auth/devstorage.read_only"
	defaultBaseURL  = "https://storage.googleapis.com"
	metadataToken   = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	errorBodyLimit  = 2048
	maxObjectLength = 64 << 20
)

// ErrObjectNotFound is returned when the bucket or object does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

// Client reads objects (model artifacts) over the GCS JSON API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tokenSource *tokenSource
}

// ObjectAttrs is the subset of object metadata used for change detection.
type ObjectAttrs struct {
	Bucket     string
	Name       string
	Generation string
	Size       int64
	Updated    time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

func WithBaseURL(u string) Option {
	return func(client *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(u), "/"); trimmed != "" {
			client.baseURL = trimmed
		}
	}
}

// NewClient resolves credentials from the GCP config, falling back to the
// metadata server when none are configured.
func NewClient(ctx context.Context, gcp config.GCPConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}

	var (
		ts  *tokenSource
		err error
	)
	switch {
	case gcp.CredentialsJSON != "":
		ts, err = newServiceAccountTokenSource(client.httpClient, gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(gcp.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		ts, err = newServiceAccountTokenSource(client.httpClient, string(raw))
	default:
		ts = newMetadataTokenSource(client.httpClient)
	}
	if err != nil {
		return nil, err
	}
	client.tokenSource = ts

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

// ParseURI splits gs://bucket/object.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs uri needs bucket and object: %q", uri)
	}
	return bucket, object, nil
}

// Attrs fetches object metadata.
func (c *Client) Attrs(ctx context.Context, bucket, object string) (*ObjectAttrs, error) {
	resp, err := c.get(ctx, c.objectURL(bucket, object, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var meta struct {
		Bucket     string    `json:"bucket"`
		Name       string    `json:"name"`
		Generation string    `json:"generation"`
		Size       string    `json:"size"`
		Updated    time.Time `json:"updated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode object metadata: %w", err)
	}
	attrs := &ObjectAttrs{
		Bucket:     meta.Bucket,
		Name:       meta.Name,
		Generation: meta.Generation,
		Updated:    meta.Updated,
	}
	if size, err := strconv.ParseInt(meta.Size, 10, 64); err == nil {
		attrs.Size = size
	}
	return attrs, nil
}

// Download reads the whole object into memory.
func (c *Client) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	resp, err := c.get(ctx, c.objectURL(bucket, object, true))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectLength+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if len(body) > maxObjectLength {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", bucket, object, maxObjectLength)
	}
	return body, nil
}

// Ping checks that a token can be minted.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	_, err := c.tokenSource.Token(ctx)
	return err
}

func (c *Client) objectURL(bucket, object string, media bool) string {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.baseURL, url.PathEscape(bucket), url.PathEscape(object))
	if media {
		u += "?alt=media"
	}
	return u
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	if c == nil || c.tokenSource == nil {
		return nil, errors.New("gcs client not initialized")
	}
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrObjectNotFound
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("gcs request failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
}

type tokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
	fetch  func(context.Context) (string, time.Time, error)
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now
	if t.now != nil {
		now = t.now
	}
	if t.token != "" && t.expiry.Sub(now()) > time.Minute {
		return t.token, nil
	}

	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiry = expiry
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func newServiceAccountTokenSource(client *http.Client, jsonCreds string) (*tokenSource, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(jsonCreds), &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("invalid service account credentials")
	}
	tokenURI := creds.TokenURI
	if tokenURI == "" {
		tokenURI = tokenEndpoint
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			now := time.Now()
			assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
				"iss":   creds.ClientEmail,
				"scope": scope,
				"aud":   tokenURI,
				"iat":   now.Unix(),
				"exp":   now.Add(time.Hour).Unix(),
			}).SignedString(key)
			if err != nil {
				return "", time.Time{}, fmt.Errorf("sign assertion: %w", err)
			}
			form := url.Values{}
			form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
			form.Set("assertion", assertion)

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
			if err != nil {
				return "", time.Time{}, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return doTokenRequest(client, req)
		},
	}, nil
}

func newMetadataTokenSource(client *http.Client) *tokenSource {
	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
			if err != nil {
				return "", time.Time{}, err
			}
			req.Header.Set("Metadata-Flavor", "Google")
			return doTokenRequest(client, req)
		},
	}
}

func doTokenRequest(client *http.Client, req *http.Request) (string, time.Time, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %s", resp.Status)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, err
	}
	return tr.AccessToken, time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}

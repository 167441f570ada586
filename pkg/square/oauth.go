package square

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"
)

var errApplicationCredentials = errors.New("square application id and secret are required for token refresh")

// TokenGrant is the result of an OAuth token exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	MerchantID   string
}

// NeedsRefresh reports whether a token expiring at expiresAt should be
// refreshed before use at now.
func NeedsRefresh(expiresAt, now time.Time, skew time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(expiresAt)
}

// RefreshToken exchanges a refresh token for a new access token. Square may
// rotate the refresh token; callers persist whatever comes back.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	if c.applicationID == "" || c.applicationSecret == "" {
		return nil, errApplicationCredentials
	}
	refresh := strings.TrimSpace(refreshToken)
	if refresh == "" {
		return nil, errors.New("square refresh token is required")
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(c.baseURL),
		sqoption.WithHTTPClient(c.httpClient),
		sqoption.WithMaxAttempts(1),
	)
	req := &sq.ObtainTokenRequest{
		ClientID:     c.applicationID,
		ClientSecret: sq.String(c.applicationSecret),
		GrantType:    "refresh_token",
		RefreshToken: sq.String(refresh),
	}
	c.log(ctx, "request", "refresh_token", map[string]any{"refresh_token": refresh})

	var resp *sq.ObtainTokenResponse
	err := c.do(ctx, "refresh_token", func(ctx context.Context) error {
		var callErr error
		resp, callErr = sdk.OAuth.ObtainToken(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	grant := &TokenGrant{
		AccessToken:  stringValue(resp.GetAccessToken()),
		RefreshToken: stringValue(resp.GetRefreshToken()),
		MerchantID:   stringValue(resp.GetMerchantID()),
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = refresh
	}
	if raw := stringValue(resp.GetExpiresAt()); raw != "" {
		if exp, err := time.Parse(time.RFC3339, raw); err == nil {
			grant.ExpiresAt = exp.UTC()
		}
	}
	if grant.AccessToken == "" {
		return nil, c.mapSquareError(errors.New("empty access token in response"), "refresh token")
	}
	c.log(ctx, "response", "refresh_token", map[string]any{"merchant_id": grant.MerchantID})
	return grant, nil
}

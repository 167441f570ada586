package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	redisclient "github.com/angelmondragon/marketprep-backend/pkg/redis"
)

const (
	refreshTokenBytes = 32

	kindRefresh = "refresh"
	kindAccess  = "access"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(kind, id string) string
}

// Session is what a refresh token resolves to.
type Session struct {
	VendorID uuid.UUID
	AccessID string
}

// Manager stores refresh sessions in Redis. Refresh tokens are opaque and only
// their SHA-256 is persisted; the access id (JWT jti) indexes the session for
// logout and revocation checks.
type Manager struct {
	store sessionStore
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, ttl: ttl}, nil
}

// Generate opens a session for vendorID under accessID and returns the refresh token.
func (m *Manager) Generate(ctx context.Context, vendorID uuid.UUID, accessID string) (string, error) {
	if vendorID == uuid.Nil {
		return "", fmt.Errorf("vendor id is required")
	}
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	digest := hashToken(token)
	value := vendorID.String() + "|" + accessID
	if err := m.store.Set(ctx, m.store.SessionKey(kindRefresh, digest), value, m.ttl); err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.SessionKey(kindAccess, accessID), digest, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate consumes a refresh token and opens a replacement session.
func (m *Manager) Rotate(ctx context.Context, provided string) (Session, string, error) {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return Session{}, "", ErrInvalidRefreshToken
	}
	digest := hashToken(provided)
	refreshKey := m.store.SessionKey(kindRefresh, digest)
	stored, err := m.store.Get(ctx, refreshKey)
	if err != nil {
		return Session{}, "", wrapNotFound(err)
	}
	old, err := parseSession(stored)
	if err != nil {
		return Session{}, "", err
	}

	if err := m.store.Del(ctx, refreshKey, m.store.SessionKey(kindAccess, old.AccessID)); err != nil {
		return Session{}, "", err
	}

	next := Session{VendorID: old.VendorID, AccessID: NewAccessID()}
	token, err := m.Generate(ctx, next.VendorID, next.AccessID)
	if err != nil {
		return Session{}, "", err
	}
	return next, token, nil
}

// Revoke deletes the session tied to the access identifier.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	accessKey := m.store.SessionKey(kindAccess, accessID)
	digest, err := m.store.Get(ctx, accessKey)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil
		}
		return err
	}
	return m.store.Del(ctx, accessKey, m.store.SessionKey(kindRefresh, digest))
}

// HasSession reports whether the access ID still has an active session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.store.SessionKey(kindAccess, accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewAccessID produces the identifier used as the JWT jti.
func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func parseSession(raw string) (Session, error) {
	vendorPart, accessID, ok := strings.Cut(raw, "|")
	if !ok || accessID == "" {
		return Session{}, ErrInvalidRefreshToken
	}
	vendorID, err := uuid.Parse(vendorPart)
	if err != nil {
		return Session{}, ErrInvalidRefreshToken
	}
	return Session{VendorID: vendorID, AccessID: accessID}, nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}

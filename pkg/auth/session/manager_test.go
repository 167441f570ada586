package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) SessionKey(kind, id string) string {
	return "session:" + kind + ":" + id
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, ttl: time.Hour}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	vendorID := uuid.New()

	token, err := manager.Generate(ctx, vendorID, "access-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	for key := range store.data {
		assert.NotContains(t, key, token, "raw refresh token must not be stored")
	}

	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.True(t, ok)

	sess, newToken, err := manager.Rotate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, vendorID, sess.VendorID)
	assert.NotEqual(t, "access-1", sess.AccessID)
	assert.NotEqual(t, token, newToken)

	ok, err = manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok, "old session revoked on rotation")

	_, _, err = manager.Rotate(ctx, token)
	assert.True(t, errors.Is(err, ErrInvalidRefreshToken), "refresh tokens are single use")

	_, _, err = manager.Rotate(ctx, newToken)
	require.NoError(t, err)
}

func TestManagerRevoke(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()

	token, err := manager.Generate(ctx, uuid.New(), "access-2")
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, "access-2"))
	assert.Empty(t, store.data)

	_, _, err = manager.Rotate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, manager.Revoke(ctx, "unknown"))
	require.Error(t, manager.Revoke(ctx, " "))
}

func TestManagerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	_, err := manager.Generate(ctx, uuid.Nil, "a")
	require.Error(t, err)
	_, err = manager.Generate(ctx, uuid.New(), "")
	require.Error(t, err)
	_, _, err = manager.Rotate(ctx, "")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = manager.Rotate(ctx, "never-issued")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

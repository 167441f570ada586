package cache

import (
	"context"
	"errors"
	"time"

	redisclient "github.com/angelmondragon/marketprep-backend/pkg/redis"
)

type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Redis stores entries under the platform's cache namespace.
type Redis struct {
	client redisBackend
}

// NewRedis wraps the shared Redis client.
func NewRedis(client redisBackend) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.client.CacheKey(key))
	if err != nil {
		if errors.Is(err, redisclient.ErrNil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	return r.client.Set(ctx, r.client.CacheKey(key), string(value), ttl)
}

// Package cache provides the key/value + TTL store injected into the external
// data adapters.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store is a byte cache with per-entry TTL. Get reports found=false for
// missing or expired keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Clock returns the current time; tests swap it for a fake.
type Clock func() time.Time

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. It is used in tests and when Redis is not
// configured for local tooling.
type Memory struct {
	mu      sync.Mutex
	now     Clock
	entries map[string]memoryEntry
}

// NewMemory builds a Memory store; a nil clock uses time.Now.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

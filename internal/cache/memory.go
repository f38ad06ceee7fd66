package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMemoryEntries bounds the in-process cache when no size is configured.
const DefaultMemoryEntries = 10000

// Memory is an in-process Cache with per-entry TTL and least-recently-used eviction once
// maxEntries is reached. Expired entries are never returned; they are dropped on eviction
// or when Len is called.
type Memory struct {
	c *ttlcache.Cache[string, []byte]
}

// NewMemory holds at most maxEntries values; maxEntries <= 0 uses DefaultMemoryEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &Memory{c: ttlcache.New[string, []byte](
		ttlcache.WithCapacity[string, []byte](uint64(maxEntries)),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := m.c.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return append([]byte(nil), item.Value()...), true, nil
}

// Set stores a copy of val. A ttl <= 0 never expires.
func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.c.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.c.DeleteAll()
	return nil
}

func (m *Memory) Len() int {
	m.c.DeleteExpired()
	return m.c.Len()
}

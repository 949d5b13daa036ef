// Package memory provides an in-memory vector cache used in tests and in
// cache-less (single process) runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.VectorCache = (*Cache)(nil)

type entry struct {
	vector    []float32
	expiresAt time.Time
}

// Cache is a mutex-guarded in-memory vector cache with TTL expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is injectable for expiry tests.
	now func() time.Time
}

// New creates an empty in-memory cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// SetClock overrides the cache's clock. Useful for testing expiry.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached vector for key, or a miss.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	vector := make([]float32, len(e.vector))
	copy(vector, e.vector)
	return vector, true, nil
}

// Set stores a vector under key. A zero TTL means no expiry.
func (c *Cache) Set(_ context.Context, key string, vector []float32, ttl time.Duration) error {
	stored := make([]float32, len(vector))
	copy(stored, vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{vector: stored}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases resources.
func (c *Cache) Close() error {
	return nil
}

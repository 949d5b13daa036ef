// Package redis provides a Redis-backed vector cache.
//
// Vectors are stored JSON-serialized under their content-addressed key
// with a TTL. The cache is shared across processes; a write race on the
// same key is harmless because the value is a pure function of the key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.VectorCache = (*Cache)(nil)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Cache is a Redis-backed vector cache.
type Cache struct {
	client *redis.Client
}

// New creates a Redis vector cache. The connection is lazy; reachability
// is only observed on first use (or via Ping).
func New(cfg Config) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Get returns the cached vector for key, or a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", domain.ErrCacheUnavailable, err)
	}

	var vector []float32
	if err := json.Unmarshal([]byte(data), &vector); err != nil {
		// A corrupt entry is indistinguishable from a miss for callers.
		return nil, false, nil
	}
	return vector, true, nil
}

// Set stores a vector under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

package driven

import (
	"context"
	"time"
)

// VectorCache is the content-addressed embedding cache.
//
// Keys are hashes over (model, normalized text), so a stored value is a
// pure function of its key and last-writer-wins races are harmless.
// Implementations return errors wrapping domain.ErrCacheUnavailable; the
// caller always degrades those to a miss.
type VectorCache interface {
	// Get returns the cached vector for key. The second return is false
	// on a miss; an error indicates the cache itself is unreachable.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores a vector under key with the given TTL.
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error

	// Close releases resources.
	Close() error
}

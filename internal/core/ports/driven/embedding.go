package driven

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// EmbeddingProvider is the raw model API boundary.
//
// The provider does nothing but turn text into vectors; caching, rate
// limiting and retry live in the embedding client service in front of it.
// Implementations classify failures into the domain error taxonomy:
// ErrProviderAuth and ErrProviderInvalidInput are permanent,
// ErrProviderTransient and ErrProviderRateLimited are retryable.
type EmbeddingProvider interface {
	// Embed generates a vector for a single text and reports the
	// provider-measured token usage.
	Embed(ctx context.Context, text string) ([]float32, domain.Usage, error)

	// Dimensions returns the embedding vector size for the configured model.
	Dimensions() int

	// ModelName returns the embedding model identifier.
	ModelName() string

	// Ping validates the provider is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

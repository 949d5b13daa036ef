package driven

import "context"

// RerankScorer scores (query, passage) pairs jointly with a cross-encoder
// model. Scores are comparable only within one call.
//
// Implementations wrap backend failures in domain.ErrRerankerUnavailable;
// the rerank service degrades those to the unmodified vector ordering.
type RerankScorer interface {
	// Score returns one relevance score per passage, aligned by index.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the cross-encoder model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

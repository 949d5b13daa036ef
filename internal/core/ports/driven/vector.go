package driven

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// VectorIndex stores (id, vector, payload) points in a similarity-search
// service and executes k-NN queries with metadata filters.
//
// The remote service is the consistency boundary; implementations do no
// local locking. Point IDs are deterministic, so upserting a re-chunked
// document overwrites its previous points.
type VectorIndex interface {
	// EnsureCollection idempotently creates the collection with the given
	// vector dimension and distance metric.
	EnsureCollection(ctx context.Context, dimensions int, metric domain.DistanceMetric) error

	// Upsert writes points in one batched call.
	Upsert(ctx context.Context, points []domain.IndexPoint) error

	// Search returns up to q.Limit results ordered descending by score.
	// An empty result list is not an error.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)

	// DeleteByDocument removes every point belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// ScrollByDocument fetches every point belonging to a document,
	// unbounded by the search limit.
	ScrollByDocument(ctx context.Context, documentID string) ([]domain.IndexPoint, error)

	// Close releases resources.
	Close() error
}

// Package memory provides an in-memory vector index with exact cosine
// scan. It mirrors the Qdrant adapter's filter semantics and backs tests
// and local single-process runs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a mutex-guarded exact-scan vector index.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	metric     domain.DistanceMetric
	points     map[string]domain.IndexPoint
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		points: make(map[string]domain.IndexPoint),
	}
}

// EnsureCollection records the collection shape. Calling it again with a
// different dimension fails, matching the remote adapter's behaviour.
func (x *Index) EnsureCollection(_ context.Context, dimensions int, metric domain.DistanceMetric) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidConfig)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimensions != 0 && x.dimensions != dimensions {
		return fmt.Errorf("%w: collection has dimension %d, requested %d",
			domain.ErrDimensionMismatch, x.dimensions, dimensions)
	}
	x.dimensions = dimensions
	x.metric = metric
	return nil
}

// Upsert writes points, overwriting existing IDs.
func (x *Index) Upsert(_ context.Context, points []domain.IndexPoint) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, p := range points {
		if x.dimensions != 0 && len(p.Vector) != x.dimensions {
			return fmt.Errorf("%w: point %s has dimension %d, collection %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), x.dimensions)
		}
		x.points[p.ID] = p
	}
	return nil
}

// Search performs an exact scan ordered descending by similarity.
func (x *Index) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []domain.SearchResult
	for _, p := range x.points {
		if !matchesFilter(p.Payload, q.Filter) {
			continue
		}
		score := cosineSimilarity(q.Vector, p.Vector)
		if q.ScoreThreshold != nil && score < *q.ScoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:      p.ID,
			Score:   score,
			Payload: p.Payload,
			Text:    p.Payload.Text,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// DeleteByDocument removes every point belonging to a document.
func (x *Index) DeleteByDocument(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for id, p := range x.points {
		if p.Payload.DocumentID == documentID {
			delete(x.points, id)
		}
	}
	return nil
}

// ScrollByDocument fetches every point of a document, ordered by chunk index.
func (x *Index) ScrollByDocument(_ context.Context, documentID string) ([]domain.IndexPoint, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var points []domain.IndexPoint
	for _, p := range x.points {
		if p.Payload.DocumentID == documentID {
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Payload.ChunkIndex < points[j].Payload.ChunkIndex
	})
	return points, nil
}

// Len returns the number of stored points.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// matchesFilter applies AND-across-keys / OR-within-key semantics.
func matchesFilter(p domain.Payload, f domain.Filter) bool {
	for key, values := range f {
		if len(values) == 0 {
			continue
		}
		actual, ok := payloadValue(p, key)
		if !ok {
			return false
		}
		anyMatch := false
		for _, v := range values {
			if v == actual {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false
		}
	}
	return true
}

// payloadValue resolves a filter key against the typed payload fields,
// falling back to the Extra map.
func payloadValue(p domain.Payload, key string) (string, bool) {
	switch key {
	case "document_id":
		return p.DocumentID, true
	case "chunk_index":
		return strconv.Itoa(p.ChunkIndex), true
	case "document_type":
		return p.DocumentType, true
	case "title":
		return p.Title, true
	case "section":
		return p.Section, true
	case "page_number":
		return strconv.Itoa(p.PageNumber), true
	default:
		v, ok := p.Extra[key]
		return v, ok
	}
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is zero or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	x := New()
	ctx := context.Background()
	require.NoError(t, x.EnsureCollection(ctx, 3, domain.DistanceCosine))
	require.NoError(t, x.Upsert(ctx, []domain.IndexPoint{
		{
			ID:     "p1",
			Vector: []float32{1, 0, 0},
			Payload: domain.Payload{
				DocumentID: "doc-a", ChunkIndex: 0, Text: "alpha",
				DocumentType: "report",
			},
		},
		{
			ID:     "p2",
			Vector: []float32{0.9, 0.1, 0},
			Payload: domain.Payload{
				DocumentID: "doc-a", ChunkIndex: 1, Text: "beta",
				DocumentType: "report",
			},
		},
		{
			ID:     "p3",
			Vector: []float32{0, 1, 0},
			Payload: domain.Payload{
				DocumentID: "doc-b", ChunkIndex: 0, Text: "gamma",
				DocumentType: "note",
				Extra:        map[string]string{"lang": "en"},
			},
		},
	}))
	return x
}

func TestSearchOrdersByCosine(t *testing.T) {
	x := seedIndex(t)

	results, err := x.Search(context.Background(), domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "p1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "p2", results[1].ID)
	assert.Equal(t, "p3", results[2].ID)
	assert.Equal(t, "alpha", results[0].Text)
}

func TestSearchLimit(t *testing.T) {
	x := seedIndex(t)

	results, err := x.Search(context.Background(), domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
}

func TestSearchThreshold(t *testing.T) {
	x := seedIndex(t)

	threshold := 0.99
	results, err := x.Search(context.Background(), domain.SearchQuery{
		Vector:         []float32{0.5, 0.5, 0.70710678},
		Limit:          10,
		ScoreThreshold: &threshold,
	})
	require.NoError(t, err, "an empty result set is not an error")
	assert.Empty(t, results)
}

func TestSearchFilterSemantics(t *testing.T) {
	x := seedIndex(t)
	ctx := context.Background()

	// OR within one key's values.
	results, err := x.Search(ctx, domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Filter: domain.Filter{"document_id": {"doc-a", "doc-b"}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// AND across distinct keys.
	results, err = x.Search(ctx, domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Filter: domain.Filter{
			"document_id":   {"doc-a", "doc-b"},
			"document_type": {"note"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p3", results[0].ID)

	// Numeric field matched via its string form.
	results, err = x.Search(ctx, domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Filter: domain.Filter{"chunk_index": {"1"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p2", results[0].ID)

	// Extra map fallback.
	results, err = x.Search(ctx, domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Filter: domain.Filter{"lang": {"en"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p3", results[0].ID)

	// A key no payload satisfies.
	results, err = x.Search(ctx, domain.SearchQuery{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Filter: domain.Filter{"lang": {"de"}},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertOverwrites(t *testing.T) {
	x := seedIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []domain.IndexPoint{{
		ID:      "p1",
		Vector:  []float32{0, 0, 1},
		Payload: domain.Payload{DocumentID: "doc-a", ChunkIndex: 0, Text: "rewritten"},
	}}))
	assert.Equal(t, 3, x.Len())

	results, err := x.Search(ctx, domain.SearchQuery{Vector: []float32{0, 0, 1}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", results[0].Text)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	x := seedIndex(t)

	err := x.Upsert(context.Background(), []domain.IndexPoint{{
		ID:     "bad",
		Vector: []float32{1, 2},
	}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	x := seedIndex(t)
	ctx := context.Background()

	assert.NoError(t, x.EnsureCollection(ctx, 3, domain.DistanceCosine))
	assert.ErrorIs(t, x.EnsureCollection(ctx, 4, domain.DistanceCosine), domain.ErrDimensionMismatch)
}

func TestDeleteByDocument(t *testing.T) {
	x := seedIndex(t)
	ctx := context.Background()

	require.NoError(t, x.DeleteByDocument(ctx, "doc-a"))
	assert.Equal(t, 1, x.Len())

	points, err := x.ScrollByDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestScrollByDocumentOrdered(t *testing.T) {
	x := seedIndex(t)

	points, err := x.ScrollByDocument(context.Background(), "doc-a")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 0, points[0].Payload.ChunkIndex)
	assert.Equal(t, 1, points[1].Payload.ChunkIndex)
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, -1, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragpipe/internal/chunker"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/tokenizer"
)

type mockIndex struct {
	mu sync.Mutex

	ensured    bool
	dimensions int
	metric     domain.DistanceMetric

	points  map[string]domain.IndexPoint
	deleted []string

	searchResults []domain.SearchResult
	searchQueries []domain.SearchQuery
	searchErr     error
	upsertErr     error
	deleteErr     error
}

func newMockIndex() *mockIndex {
	return &mockIndex{points: make(map[string]domain.IndexPoint)}
}

func (m *mockIndex) EnsureCollection(_ context.Context, dimensions int, metric domain.DistanceMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = true
	m.dimensions = dimensions
	m.metric = metric
	return nil
}

func (m *mockIndex) Upsert(_ context.Context, points []domain.IndexPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *mockIndex) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchQueries = append(m.searchQueries, q)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, documentID)
	for id, p := range m.points {
		if p.Payload.DocumentID == documentID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *mockIndex) ScrollByDocument(_ context.Context, documentID string) ([]domain.IndexPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IndexPoint
	for _, p := range m.points {
		if p.Payload.DocumentID == documentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockIndex) Close() error { return nil }

func (m *mockIndex) pointCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func newTestIngest(index *mockIndex) (*IngestService, *mockProvider) {
	provider := &mockProvider{vector: []float32{1, 0, 0}}
	client := NewEmbeddingClient(provider, nil, nil, EmbeddingConfig{})
	client.limiter.bucket = rate.NewLimiter(rate.Inf, 1)

	ch := chunker.New(tokenizer.NewApproximate(),
		chunker.WithChunkSize(50),
		chunker.WithOverlap(0),
		chunker.WithMinChunkSize(1),
	)
	return NewIngestService(ch, client, index), provider
}

func ingestText() string {
	return strings.TrimSpace(strings.Repeat("a paragraph of document text for the pipeline. \n\n", 20))
}

func TestIngestStoresAllChunks(t *testing.T) {
	index := newMockIndex()
	svc, provider := newTestIngest(index)

	result, err := svc.Ingest(context.Background(), domain.IngestRequest{
		Text:       ingestText(),
		DocumentID: "doc-1",
		Metadata:   domain.ChunkMetadata{Title: "Doc One"},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Greater(t, result.ChunkCount, 1)
	assert.Equal(t, result.ChunkCount, result.StoredVectors)
	assert.Equal(t, result.ChunkCount, index.pointCount())
	assert.Equal(t, result.ChunkCount, provider.callCount())

	assert.True(t, index.ensured)
	assert.Equal(t, 3, index.dimensions)
	assert.Equal(t, domain.DistanceCosine, index.metric)

	for _, p := range index.points {
		assert.Equal(t, "doc-1", p.Payload.DocumentID)
		assert.Equal(t, "Doc One", p.Payload.Title)
		assert.NotEmpty(t, p.Payload.Text)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	svc, _ := newTestIngest(newMockIndex())

	_, err := svc.Ingest(context.Background(), domain.IngestRequest{
		Text:       "   \n ",
		DocumentID: "doc-1",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestIngestUnchangedContentOverwritesInPlace(t *testing.T) {
	index := newMockIndex()
	svc, _ := newTestIngest(index)

	req := domain.IngestRequest{Text: ingestText(), DocumentID: "doc-1"}
	first, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.Equal(t, first.ChunkCount, index.pointCount(), "same content must reuse point IDs")
}

func TestReindexDeletesBeforeIngest(t *testing.T) {
	index := newMockIndex()
	svc, _ := newTestIngest(index)

	_, err := svc.Ingest(context.Background(), domain.IngestRequest{
		Text:       ingestText(),
		DocumentID: "doc-1",
	})
	require.NoError(t, err)

	// Changed content produces different point IDs; without the delete the
	// old points would leak.
	result, err := svc.Reindex(context.Background(), domain.IngestRequest{
		Text:       strings.ReplaceAll(ingestText(), "paragraph", "rewritten"),
		DocumentID: "doc-1",
	})
	require.NoError(t, err)

	assert.Contains(t, index.deleted, "doc-1")
	assert.Equal(t, result.ChunkCount, index.pointCount())
}

func TestDelete(t *testing.T) {
	index := newMockIndex()
	svc, _ := newTestIngest(index)

	_, err := svc.Ingest(context.Background(), domain.IngestRequest{
		Text:       ingestText(),
		DocumentID: "doc-1",
	})
	require.NoError(t, err)
	require.Greater(t, index.pointCount(), 0)

	require.NoError(t, svc.Delete(context.Background(), "doc-1"))
	assert.Zero(t, index.pointCount())
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("doc-1", 0, "chunk text")
	b := PointID("doc-1", 0, "chunk text")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, PointID("doc-1", 1, "chunk text"))
	assert.NotEqual(t, a, PointID("doc-2", 0, "chunk text"))
	assert.NotEqual(t, a, PointID("doc-1", 0, "other text"))

	// IDs are UUIDs, as the index backend requires.
	assert.Len(t, a, 36)
}

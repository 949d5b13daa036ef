package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

type mockProvider struct {
	mu       sync.Mutex
	calls    int
	failures []error // consumed one per call before succeeding
	vector   []float32
}

func (m *mockProvider) Embed(_ context.Context, text string) ([]float32, domain.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, domain.Usage{}, err
	}
	v := m.vector
	if v == nil {
		v = []float32{float32(len(text)), 1, 2}
	}
	return v, domain.Usage{TotalTokens: len(text) / 4}, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockProvider) Dimensions() int            { return 3 }
func (m *mockProvider) ModelName() string          { return "mock-embed" }
func (m *mockProvider) Ping(context.Context) error { return nil }
func (m *mockProvider) Close() error               { return nil }

type mockCache struct {
	mu     sync.Mutex
	data   map[string][]float32
	ttls   map[string]time.Duration
	getErr error
	setErr error
	gets   int
	sets   int
}

func newMockCache() *mockCache {
	return &mockCache{
		data: make(map[string][]float32),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, vector []float32, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = vector
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Close() error { return nil }

// newTestClient builds a client with the limiter and backoff sleep
// neutralized, recording requested backoff delays.
func newTestClient(p *mockProvider, cache *mockCache, cfg EmbeddingConfig) (*EmbeddingClient, *[]time.Duration) {
	var c *EmbeddingClient
	if cache != nil {
		c = NewEmbeddingClient(p, cache, nil, cfg)
	} else {
		c = NewEmbeddingClient(p, nil, nil, cfg)
	}
	c.limiter.bucket = rate.NewLimiter(rate.Inf, 1)

	slept := &[]time.Duration{}
	var mu sync.Mutex
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*slept = append(*slept, d)
		mu.Unlock()
		return nil
	}
	return c, slept
}

func TestEmbedOneCacheHit(t *testing.T) {
	provider := &mockProvider{}
	cache := newMockCache()
	cache.data[cacheKey("mock-embed", "hello world")] = []float32{9, 9, 9}

	c, _ := newTestClient(provider, cache, EmbeddingConfig{})

	result, err := c.EmbedOne(context.Background(), "hello world")
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, []float32{9, 9, 9}, result.Vector)
	assert.Equal(t, "mock-embed", result.ModelID)
	assert.Equal(t, 0, provider.callCount(), "cache hit must not reach the provider")
}

func TestEmbedOneCacheKeyNormalizesWhitespace(t *testing.T) {
	provider := &mockProvider{}
	cache := newMockCache()
	cache.data[cacheKey("mock-embed", "hello world")] = []float32{9, 9, 9}

	c, _ := newTestClient(provider, cache, EmbeddingConfig{})

	result, err := c.EmbedOne(context.Background(), "  hello \n\t world  ")
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, 0, provider.callCount())
}

func TestEmbedOneMissWritesThrough(t *testing.T) {
	provider := &mockProvider{vector: []float32{1, 2, 3}}
	cache := newMockCache()
	ttl := 2 * time.Hour

	c, _ := newTestClient(provider, cache, EmbeddingConfig{CacheTTL: ttl})

	result, err := c.EmbedOne(context.Background(), "some text")
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, []float32{1, 2, 3}, result.Vector)
	assert.Equal(t, 1, provider.callCount())

	key := cacheKey("mock-embed", "some text")
	assert.Equal(t, []float32{1, 2, 3}, cache.data[key])
	assert.Equal(t, ttl, cache.ttls[key])
}

func TestEmbedOneCacheErrorDegradesToMiss(t *testing.T) {
	provider := &mockProvider{}
	cache := newMockCache()
	cache.getErr = fmt.Errorf("dial redis: %w", domain.ErrCacheUnavailable)
	cache.setErr = cache.getErr

	c, _ := newTestClient(provider, cache, EmbeddingConfig{})

	result, err := c.EmbedOne(context.Background(), "some text")
	require.NoError(t, err, "cache outage must not fail the request")
	assert.False(t, result.Cached)
	assert.Equal(t, 1, provider.callCount())
}

func TestEmbedOneRetriesTransient(t *testing.T) {
	provider := &mockProvider{failures: []error{
		domain.ErrProviderTransient,
		fmt.Errorf("status 503: %w", domain.ErrProviderTransient),
	}}
	c, slept := newTestClient(provider, nil, EmbeddingConfig{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	})

	result, err := c.EmbedOne(context.Background(), "flaky")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Vector)
	assert.Equal(t, 3, provider.callCount())

	// Exponential base with up to 25% jitter.
	require.Len(t, *slept, 2)
	assert.GreaterOrEqual(t, (*slept)[0], 100*time.Millisecond)
	assert.LessOrEqual(t, (*slept)[0], 125*time.Millisecond)
	assert.GreaterOrEqual(t, (*slept)[1], 200*time.Millisecond)
	assert.LessOrEqual(t, (*slept)[1], 250*time.Millisecond)
}

func TestEmbedOneHonoursRetryAfterHint(t *testing.T) {
	provider := &mockProvider{failures: []error{
		&domain.RateLimitError{RetryAfter: 5 * time.Second},
	}}
	c, slept := newTestClient(provider, nil, EmbeddingConfig{
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
	})

	_, err := c.EmbedOne(context.Background(), "limited")
	require.NoError(t, err)
	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], 5*time.Second)
}

func TestEmbedOnePermanentErrorNotRetried(t *testing.T) {
	provider := &mockProvider{failures: []error{
		domain.ErrProviderAuth,
		domain.ErrProviderAuth,
	}}
	c, slept := newTestClient(provider, nil, EmbeddingConfig{MaxRetries: 3})

	_, err := c.EmbedOne(context.Background(), "secret")
	assert.ErrorIs(t, err, domain.ErrProviderAuth)
	assert.Equal(t, 1, provider.callCount(), "auth failures must not be retried")
	assert.Empty(t, *slept)
}

func TestEmbedOneRetriesExhausted(t *testing.T) {
	provider := &mockProvider{failures: []error{
		domain.ErrProviderTransient,
		domain.ErrProviderTransient,
		domain.ErrProviderTransient,
	}}
	c, _ := newTestClient(provider, nil, EmbeddingConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	_, err := c.EmbedOne(context.Background(), "down")
	assert.ErrorIs(t, err, domain.ErrProviderTransient)
	assert.Equal(t, 3, provider.callCount())
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	provider := &mockProvider{}
	c, _ := newTestClient(provider, nil, EmbeddingConfig{BatchSize: 2})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	results, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, len(texts))
	for i, r := range results {
		assert.Equal(t, texts[i], r.SourceText)
		assert.Equal(t, float32(len(texts[i])), r.Vector[0])
	}
	assert.Equal(t, len(texts), provider.callCount())
}

func TestEmbedBatchAbortsOnPermanentFailure(t *testing.T) {
	provider := &mockProvider{failures: []error{domain.ErrProviderInvalidInput}}
	c, _ := newTestClient(provider, nil, EmbeddingConfig{BatchSize: 1})

	results, err := c.EmbedBatch(context.Background(), []string{"x", "y", "z"})
	assert.ErrorIs(t, err, domain.ErrProviderInvalidInput)
	assert.Nil(t, results, "no partial result list on abort")
}

func TestEmbedBatchEmpty(t *testing.T) {
	c, _ := newTestClient(&mockProvider{}, nil, EmbeddingConfig{})

	results, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestEmbedOneRecordsUsage(t *testing.T) {
	provider := &mockProvider{}
	counters := NewUsageCounters()
	c := NewEmbeddingClient(provider, nil, counters, EmbeddingConfig{})
	c.limiter.bucket = rate.NewLimiter(rate.Inf, 1)

	_, err := c.EmbedOne(context.Background(), "twelve chars")
	require.NoError(t, err)

	snapshot := counters.Snapshot()
	require.Contains(t, snapshot, "mock-embed")
	assert.Equal(t, int64(1), snapshot["mock-embed"].Calls)
	assert.Equal(t, int64(3), snapshot["mock-embed"].Tokens)
}

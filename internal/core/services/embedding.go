package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Default embedding client settings.
const (
	DefaultRateLimitRPM = 300
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultBatchSize    = 8
	DefaultCacheTTL     = 7 * 24 * time.Hour
)

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	// RateLimitRPM caps provider calls per trailing 60s window.
	RateLimitRPM int

	// MaxRetries bounds retry attempts for transient provider failures.
	MaxRetries int

	// RetryDelay is the base backoff delay, doubled per attempt.
	RetryDelay time.Duration

	// BatchSize bounds concurrent in-flight provider calls per batch.
	BatchSize int

	// CacheTTL is the write-through cache entry lifetime.
	CacheTTL time.Duration
}

func (c *EmbeddingConfig) applyDefaults() {
	if c.RateLimitRPM <= 0 {
		c.RateLimitRPM = DefaultRateLimitRPM
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// EmbeddingClient turns text into vectors through a provider, fronted by a
// content-addressed cache and a sliding-window rate limiter.
//
// Cache hits skip the limiter entirely. Cache failures are degraded to
// misses and logged; they never fail a request. A single client is safe
// for concurrent use; the limiter is its only serialization point.
type EmbeddingClient struct {
	provider driven.EmbeddingProvider
	cache    driven.VectorCache
	usage    driven.UsageRecorder
	limiter  *rateLimiter
	cfg      EmbeddingConfig
	log      *logrus.Entry

	// sleep is injectable for backoff tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEmbeddingClient creates an embedding client. cache may be nil to
// disable caching; usage may be nil to discard counters.
func NewEmbeddingClient(provider driven.EmbeddingProvider, cache driven.VectorCache, usage driven.UsageRecorder, cfg EmbeddingConfig) *EmbeddingClient {
	cfg.applyDefaults()
	if usage == nil {
		usage = NopUsageRecorder{}
	}
	return &EmbeddingClient{
		provider: provider,
		cache:    cache,
		usage:    usage,
		limiter:  newRateLimiter(cfg.RateLimitRPM),
		cfg:      cfg,
		log:      logger.WithComponent("embedding"),
		sleep:    sleepCtx,
	}
}

// Dimensions returns the provider's embedding vector size.
func (c *EmbeddingClient) Dimensions() int {
	return c.provider.Dimensions()
}

// ModelName returns the provider's model identifier.
func (c *EmbeddingClient) ModelName() string {
	return c.provider.ModelName()
}

// EmbedOne embeds a single text, serving from cache when possible.
func (c *EmbeddingClient) EmbedOne(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	model := c.provider.ModelName()
	key := cacheKey(model, text)

	if vector, ok := c.cacheGet(ctx, key); ok {
		return domain.EmbeddingResult{
			Vector:     vector,
			SourceText: text,
			ModelID:    model,
			Cached:     true,
		}, nil
	}

	vector, usage, err := c.embedWithRetry(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	c.cacheSet(ctx, key, vector)
	c.usage.RecordEmbedding(model, usage.TotalTokens)

	return domain.EmbeddingResult{
		Vector:     vector,
		SourceText: text,
		TokenCount: usage.TotalTokens,
		ModelID:    model,
	}, nil
}

// EmbedBatch embeds texts preserving input order, with at most BatchSize
// concurrent provider calls in flight. Any single embedding that exhausts
// its retries aborts the whole batch; no partial result list is returned.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]domain.EmbeddingResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BatchSize)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			r, err := c.EmbedOne(gctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch embedding aborted: %w", err)
	}
	return results, nil
}

// embedWithRetry calls the provider through the rate limiter, retrying
// transient failures with exponential backoff and jitter. Permanent
// failures propagate immediately.
func (c *EmbeddingClient) embedWithRetry(ctx context.Context, text string) ([]float32, domain.Usage, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * (1 << (attempt - 1))
			if hint, ok := domain.RetryAfterHint(lastErr); ok && hint > delay {
				delay = hint
			}
			// Up to 25% jitter so concurrent retries don't herd.
			delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))

			c.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   lastErr,
			}).Debug("retrying provider call")

			if err := c.sleep(ctx, delay); err != nil {
				return nil, domain.Usage{}, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.Usage{}, err
		}

		vector, usage, err := c.provider.Embed(ctx, text)
		if err == nil {
			return vector, usage, nil
		}
		if !domain.IsRetryable(err) {
			return nil, domain.Usage{}, err
		}
		lastErr = err
	}

	return nil, domain.Usage{}, fmt.Errorf("embedding failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

// cacheGet looks up a vector, degrading cache errors to a miss.
func (c *EmbeddingClient) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}
	vector, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		// Degrade path: the request proceeds as a miss, but the signal
		// must be observable.
		c.log.WithError(err).WithField("degraded", "cache_miss_on_error").
			Warn("embedding cache unavailable, treating as miss")
		return nil, false
	}
	return vector, ok
}

// cacheSet writes through, logging failures without surfacing them.
func (c *EmbeddingClient) cacheSet(ctx context.Context, key string, vector []float32) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, vector, c.cfg.CacheTTL); err != nil {
		c.log.WithError(err).WithField("degraded", "cache_write_skipped").
			Warn("embedding cache write failed")
	}
}

// cacheKey is the content address of an embedding: a hash over the model
// and the whitespace-normalized text.
func cacheKey(model, text string) string {
	norm := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(model + "\x00" + norm))
	return "emb:" + hex.EncodeToString(sum[:])
}

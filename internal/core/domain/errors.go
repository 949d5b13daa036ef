package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent pipeline failures.
// Adapters wrap infrastructure errors into one of these so the services
// layer can classify without knowing the backend.
var (
	// ErrInvalidConfig indicates bad configuration (dimension/model mismatch,
	// missing endpoint). Fatal at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the collection dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrProviderAuth indicates the embedding provider rejected the
	// credentials. Never retried.
	ErrProviderAuth = errors.New("provider authentication failed")

	// ErrProviderInvalidInput indicates the provider rejected the request
	// itself. Never retried.
	ErrProviderInvalidInput = errors.New("provider rejected input")

	// ErrProviderTransient indicates a timeout or 5xx from the provider.
	// Retried with backoff.
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderRateLimited indicates the provider returned 429.
	// Retried with backoff, honouring any retry-after hint.
	ErrProviderRateLimited = errors.New("provider rate limited")

	// ErrCacheUnavailable indicates the embedding cache could not be
	// reached. Always degraded to a cache miss, never fatal.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrRerankerUnavailable indicates the rerank backend is down.
	// Callers fall back to the unmodified similarity ordering.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	// Fatal for the current search or ingest call; no local fallback exists.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmptyDocument indicates ingestion received text that produced no
	// chunks.
	ErrEmptyDocument = errors.New("document produced no chunks")
)

// RateLimitError wraps ErrProviderRateLimited with the provider's
// retry-after hint, when one was supplied.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
	}
	return ErrProviderRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error { return ErrProviderRateLimited }

// IsRetryable reports whether an operation that failed with err may be
// retried. Auth and invalid-input failures are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrProviderRateLimited)
}

// RetryAfterHint extracts the provider's retry-after hint from err, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}

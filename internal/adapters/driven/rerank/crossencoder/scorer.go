// Package crossencoder provides a rerank scorer backed by a remote
// cross-encoder inference endpoint.
//
// The endpoint scores (query, passage) pairs jointly and returns one
// relevance score per pair. Any backend failure is reported as
// domain.ErrRerankerUnavailable so callers degrade to the vector ordering
// instead of failing the request.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure Scorer implements the interface.
var _ driven.RerankScorer = (*Scorer)(nil)

// Default configuration values.
const (
	DefaultModel   = "BAAI/bge-reranker-v2-m3"
	DefaultTimeout = 30 * time.Second
)

// Config holds cross-encoder endpoint settings.
type Config struct {
	// Endpoint is the scoring API URL (required).
	Endpoint string

	// Model is the cross-encoder model name.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the per-call request timeout.
	Timeout time.Duration
}

// Scorer scores (query, passage) pairs over HTTP.
type Scorer struct {
	cfg    Config
	client *http.Client
}

// scoreRequest is the inference API request format: one [query, passage]
// pair per entry.
type scoreRequest struct {
	Model string      `json:"model"`
	Pairs [][2]string `json:"pairs"`
}

// scoreResponse is the inference API response format.
type scoreResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// New creates a cross-encoder scorer.
func New(cfg Config) (*Scorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: cross-encoder endpoint is required", domain.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Scorer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Score returns one relevance score per passage, aligned by index.
func (s *Scorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	pairs := make([][2]string, len(passages))
	for i, p := range passages {
		pairs[i] = [2]string{query, p}
	}

	jsonBody, err := json.Marshal(scoreRequest{Model: s.cfg.Model, Pairs: pairs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRerankerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrRerankerUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrRerankerUnavailable, resp.StatusCode, string(body))
	}

	var scoreResp scoreResponse
	if err := json.Unmarshal(body, &scoreResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRerankerUnavailable, err)
	}
	if scoreResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrRerankerUnavailable, scoreResp.Error)
	}
	if len(scoreResp.Scores) != len(passages) {
		return nil, fmt.Errorf("%w: got %d scores for %d passages",
			domain.ErrRerankerUnavailable, len(scoreResp.Scores), len(passages))
	}
	return scoreResp.Scores, nil
}

// ModelName returns the cross-encoder model identifier.
func (s *Scorer) ModelName() string {
	return s.cfg.Model
}

// Close releases resources.
func (s *Scorer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

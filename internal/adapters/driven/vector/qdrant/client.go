// Package qdrant provides the remote vector index adapter over Qdrant's
// HTTP API.
//
// Qdrant is the consistency boundary: the adapter holds no local state
// beyond the HTTP client, and all writes use wait=true so a returned
// upsert is visible to the next search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a Qdrant-backed vector index.
type Index struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a Qdrant index adapter.
func New(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = DefaultHNSWM
	}
	if cfg.HNSWEfConstruct <= 0 {
		cfg.HNSWEfConstruct = DefaultHNSWEfConstruct
	}
	if cfg.FullScanThreshold <= 0 {
		cfg.FullScanThreshold = DefaultFullScanThreshold
	}
	return &Index{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.WithComponent("qdrant"),
	}, nil
}

// apiResponse is the envelope Qdrant wraps every reply in.
type apiResponse struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

// doRequest executes one API call and returns the raw result payload.
// Connection failures and 5xx map to ErrIndexUnavailable.
func (x *Index) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, int, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.cfg.baseURL()+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.cfg.APIKey != "" {
		req.Header.Set("api-key", x.cfg.APIKey)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %v", domain.ErrIndexUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d: %s", domain.ErrIndexUnavailable, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("qdrant: status %d: %s", resp.StatusCode, string(respBody))
	}

	var env apiResponse
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: decode response: %v", domain.ErrIndexUnavailable, err)
	}
	return env.Result, resp.StatusCode, nil
}

// collectionPath returns the API path for the configured collection.
func (x *Index) collectionPath(suffix string) string {
	return "/collections/" + x.cfg.Collection + suffix
}

// EnsureCollection idempotently creates the collection.
func (x *Index) EnsureCollection(ctx context.Context, dimensions int, metric domain.DistanceMetric) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidConfig)
	}

	_, status, err := x.doRequest(ctx, http.MethodGet, x.collectionPath(""), nil)
	if err == nil {
		x.log.WithField("collection", x.cfg.Collection).Debug("collection exists")
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": string(metric),
		},
		"hnsw_config": map[string]any{
			"m":                   x.cfg.HNSWM,
			"ef_construct":        x.cfg.HNSWEfConstruct,
			"full_scan_threshold": x.cfg.FullScanThreshold,
		},
	}
	if _, _, err := x.doRequest(ctx, http.MethodPut, x.collectionPath(""), body); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	x.log.WithFields(logrus.Fields{
		"collection": x.cfg.Collection,
		"dimensions": dimensions,
		"metric":     metric,
	}).Info("created collection")
	return nil
}

// Upsert writes points in one batched call.
func (x *Index) Upsert(ctx context.Context, points []domain.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	apiPoints := make([]map[string]any, len(points))
	for i, p := range points {
		apiPoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": payloadToMap(p.Payload),
		}
	}

	body := map[string]any{"points": apiPoints}
	if _, _, err := x.doRequest(ctx, http.MethodPut, x.collectionPath("/points?wait=true"), body); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	x.log.WithFields(logrus.Fields{
		"collection": x.cfg.Collection,
		"points":     len(points),
	}).Debug("upserted points")
	return nil
}

// searchResult is one scored point in a search reply.
type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search returns up to q.Limit results ordered descending by score.
func (x *Index) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidConfig)
	}

	body := map[string]any{
		"vector":       q.Vector,
		"limit":        q.Limit,
		"with_payload": true,
	}
	if q.ScoreThreshold != nil {
		body["score_threshold"] = *q.ScoreThreshold
	}
	if f := buildFilter(q.Filter); f != nil {
		body["filter"] = f
	}

	result, _, err := x.doRequest(ctx, http.MethodPost, x.collectionPath("/points/search"), body)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var hits []searchResult
	if err := json.Unmarshal(result, &hits); err != nil {
		return nil, fmt.Errorf("%w: decode search result: %v", domain.ErrIndexUnavailable, err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		payload := payloadFromMap(h.Payload)
		results[i] = domain.SearchResult{
			ID:      fmt.Sprintf("%v", h.ID),
			Score:   h.Score,
			Payload: payload,
			Text:    payload.Text,
		}
	}
	return results, nil
}

// DeleteByDocument removes every point belonging to a document.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": buildFilter(domain.Filter{"document_id": {documentID}}),
	}
	if _, _, err := x.doRequest(ctx, http.MethodPost, x.collectionPath("/points/delete?wait=true"), body); err != nil {
		return fmt.Errorf("delete points for %s: %w", documentID, err)
	}
	return nil
}

// scrollPage is the result payload of one scroll call.
type scrollPage struct {
	Points []struct {
		ID      any            `json:"id"`
		Payload map[string]any `json:"payload"`
		Vector  []float32      `json:"vector"`
	} `json:"points"`
	NextPageOffset any `json:"next_page_offset"`
}

// ScrollByDocument fetches every point belonging to a document.
func (x *Index) ScrollByDocument(ctx context.Context, documentID string) ([]domain.IndexPoint, error) {
	var points []domain.IndexPoint
	var offset any

	for {
		body := map[string]any{
			"filter":       buildFilter(domain.Filter{"document_id": {documentID}}),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		result, _, err := x.doRequest(ctx, http.MethodPost, x.collectionPath("/points/scroll"), body)
		if err != nil {
			return nil, fmt.Errorf("scroll points for %s: %w", documentID, err)
		}

		var page scrollPage
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("%w: decode scroll result: %v", domain.ErrIndexUnavailable, err)
		}

		for _, p := range page.Points {
			points = append(points, domain.IndexPoint{
				ID:      fmt.Sprintf("%v", p.ID),
				Vector:  p.Vector,
				Payload: payloadFromMap(p.Payload),
			})
		}

		if page.NextPageOffset == nil {
			return points, nil
		}
		offset = page.NextPageOffset
	}
}

// Ping checks connectivity against the instance root.
func (x *Index) Ping(ctx context.Context) error {
	_, _, err := x.doRequest(ctx, http.MethodGet, "/", nil)
	return err
}

// Close releases resources.
func (x *Index) Close() error {
	x.httpClient.CloseIdleConnections()
	return nil
}

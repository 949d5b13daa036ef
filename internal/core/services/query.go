package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.Querier = (*QueryService)(nil)

// Query defaults.
const (
	DefaultQueryLimit = 5
	DefaultKRetrieval = 8
)

// QueryService runs the retrieval flow: embed, search, rerank, build.
type QueryService struct {
	embedder *EmbeddingClient
	index    driven.VectorIndex
	reranker *Reranker // nil disables reranking entirely
	builder  *ContextBuilder
	log      *logrus.Entry
}

// NewQueryService creates a query service. reranker may be nil when no
// scoring backend is configured.
func NewQueryService(embedder *EmbeddingClient, index driven.VectorIndex, reranker *Reranker, builder *ContextBuilder) *QueryService {
	return &QueryService{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		builder:  builder,
		log:      logger.WithComponent("query"),
	}
}

// Query answers a retrieval query. An unavailable reranker degrades to
// the vector-similarity ordering with RerankingEnabled=false; an
// unavailable index fails the call.
func (s *QueryService) Query(ctx context.Context, query string, opts domain.QueryOptions) (domain.QueryResponse, error) {
	started := time.Now()
	resp := domain.QueryResponse{
		Timings: domain.QueryTimings{RequestID: uuid.New().String()},
	}

	query = strings.TrimSpace(query)
	if query == "" {
		resp.Context = s.builder.Build("", nil)
		return resp, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	k := opts.KRetrieval
	if k <= 0 {
		k = DefaultKRetrieval
	}
	if k < limit {
		k = limit
	}

	stage := time.Now()
	embedded, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return domain.QueryResponse{}, fmt.Errorf("embed query: %w", err)
	}
	resp.Timings.Embed = time.Since(stage)

	stage = time.Now()
	results, err := s.index.Search(ctx, domain.SearchQuery{
		Vector:         embedded.Vector,
		Limit:          k,
		ScoreThreshold: opts.ScoreThreshold,
		Filter:         s.buildFilter(opts),
	})
	if err != nil {
		return domain.QueryResponse{}, fmt.Errorf("vector search: %w", err)
	}
	resp.Timings.Search = time.Since(stage)

	if opts.EnableReranking {
		stage = time.Now()
		results, resp.RerankingEnabled = s.rerank(ctx, query, results, limit)
		resp.Timings.Rerank = time.Since(stage)
		if ctx.Err() != nil {
			return domain.QueryResponse{}, ctx.Err()
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}

	stage = time.Now()
	resp.Results = results
	resp.Context = s.builder.Build(query, results)
	resp.Timings.Build = time.Since(stage)
	resp.Timings.Total = time.Since(started)

	s.log.WithFields(logrus.Fields{
		"request_id": resp.Timings.RequestID,
		"results":    len(results),
		"reranked":   resp.RerankingEnabled,
		"total":      resp.Timings.Total,
	}).Debug("query answered")

	return resp, nil
}

// rerank reorders results by cross-encoder score. Backend failures fall
// back to the input ordering; the degrade is logged, never surfaced.
func (s *QueryService) rerank(ctx context.Context, query string, results []domain.SearchResult, limit int) ([]domain.SearchResult, bool) {
	if s.reranker == nil || len(results) == 0 {
		return results, false
	}

	reranked, err := s.reranker.Rerank(ctx, query, results, limit)
	if err != nil {
		// Degrade path: quality drops but the request succeeds, so the
		// signal must be observable.
		s.log.WithError(err).WithField("degraded", "similarity_order").
			Warn("reranker unavailable, using vector-similarity ordering")
		return results, false
	}

	reordered := make([]domain.SearchResult, len(reranked))
	for i, rr := range reranked {
		original := results[rr.OriginalIndex]
		reordered[i] = domain.SearchResult{
			ID:      original.ID,
			Score:   rr.RerankScore,
			Payload: rr.Metadata,
			Text:    rr.Passage,
		}
	}
	return reordered, true
}

// buildFilter merges the document ID restriction into the caller filter.
// Distinct keys are AND; the ID list is OR within its key.
func (s *QueryService) buildFilter(opts domain.QueryOptions) domain.Filter {
	if len(opts.DocumentIDs) == 0 && len(opts.Filter) == 0 {
		return nil
	}

	filter := make(domain.Filter, len(opts.Filter)+1)
	for k, v := range opts.Filter {
		filter[k] = v
	}
	if len(opts.DocumentIDs) > 0 {
		filter["document_id"] = opts.DocumentIDs
	}
	return filter
}

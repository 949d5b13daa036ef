package driving

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// Ingestor accepts documents into the pipeline.
type Ingestor interface {
	// Ingest chunks, embeds and indexes a document.
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error)

	// Reindex deletes a document's points and ingests it afresh.
	Reindex(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error)

	// Delete removes every indexed point of a document.
	Delete(ctx context.Context, documentID string) error
}

// Querier answers retrieval queries.
type Querier interface {
	// Query embeds the query, searches the index, optionally reranks, and
	// assembles a context window.
	Query(ctx context.Context, query string, opts domain.QueryOptions) (domain.QueryResponse, error)
}

package domain

import "time"

// IngestRequest carries a document into the pipeline. The caller (an
// external collaborator) has already extracted the raw text.
type IngestRequest struct {
	// Text is the full document text.
	Text string

	// DocumentID is the caller's opaque document identifier.
	DocumentID string

	// FormatHint selects the splitter variant ("text", "markdown").
	FormatHint string

	// Metadata is attached to every chunk produced from the document.
	Metadata ChunkMetadata
}

// IngestResult reports what ingestion stored.
type IngestResult struct {
	DocumentID    string
	ChunkCount    int
	StoredVectors int
}

// QueryOptions configures a retrieval query.
type QueryOptions struct {
	// Limit is the maximum number of results returned to the caller.
	Limit int

	// KRetrieval is the coarse vector-search depth before reranking.
	KRetrieval int

	// DocumentIDs restricts retrieval to the given documents.
	DocumentIDs []string

	// Filter adds further payload conditions (AND across keys).
	Filter Filter

	// EnableReranking routes candidates through the cross-encoder.
	EnableReranking bool

	// ScoreThreshold, when non-nil, drops vector hits scoring below it.
	ScoreThreshold *float64
}

// QueryTimings records per-stage wall-clock durations for one request.
type QueryTimings struct {
	RequestID string
	Embed     time.Duration
	Search    time.Duration
	Rerank    time.Duration
	Build     time.Duration
	Total     time.Duration
}

// QueryResponse is the full answer to a retrieval query.
type QueryResponse struct {
	// Results is the final ranked result list, at most Limit entries.
	Results []SearchResult

	// Context is the assembled context window over Results.
	Context ContextWindow

	// RerankingEnabled is false when reranking was requested but the
	// backend was unavailable and the vector ordering was used instead.
	RerankingEnabled bool

	Timings QueryTimings
}

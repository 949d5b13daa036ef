package domain

// DistanceMetric selects the similarity function of a vector collection.
type DistanceMetric string

// Supported distance metrics.
const (
	DistanceCosine DistanceMetric = "Cosine"
	DistanceDot    DistanceMetric = "Dot"
	DistanceEuclid DistanceMetric = "Euclid"
)

// Payload is the metadata stored alongside a vector in the index.
// DocumentID, ChunkIndex and Text are always present.
type Payload struct {
	DocumentID   string
	ChunkIndex   int
	Text         string
	DocumentType string
	Title        string
	Section      string
	PageNumber   int
	PageStart    int
	PageEnd      int

	// Extra holds pass-through metadata from ingestion.
	Extra map[string]string
}

// IndexPoint is a single (id, vector, payload) entry in the vector index.
// Point IDs are deterministic, derived from (document_id, chunk_index,
// content hash), so re-indexing a document overwrites rather than leaks.
type IndexPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Filter restricts a search to points whose payload matches.
//
// Semantics: values under one key combine as "any of" (OR); conditions
// across distinct keys combine as AND. The chunk_index key matches the
// numeric payload field; every other key matches a string field or an
// Extra entry.
type Filter map[string][]string

// SearchQuery is a k-NN query against the vector index.
type SearchQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// Limit is the maximum number of results (k).
	Limit int

	// ScoreThreshold, when non-nil, drops results scoring below it.
	ScoreThreshold *float64

	// Filter restricts candidates by payload metadata. Nil means no filter.
	Filter Filter
}

// SearchResult is a single similarity hit, higher score = more similar.
// Result lists are always ordered descending by Score.
type SearchResult struct {
	ID      string
	Score   float64
	Payload Payload

	// Text is the chunk text, copied out of the payload for convenience.
	Text string
}

// RerankResult is a cross-encoder rescored candidate.
// Result lists are ordered descending by RerankScore.
type RerankResult struct {
	// OriginalIndex refers back into the input candidate list. It is
	// assigned once and never remapped after sorting or truncation.
	OriginalIndex int

	// RerankScore is the cross-encoder relevance score.
	RerankScore float64

	// Passage is the candidate text that was scored.
	Passage string

	// Metadata is the candidate's payload, carried through untouched.
	Metadata Payload
}

package domain

// TruncationStrategy selects how the context builder handles the first
// chunk that does not fit the remaining token budget.
type TruncationStrategy string

const (
	// TruncateTopOnly includes whole chunks greedily and stops at the first
	// chunk that would overflow the budget.
	TruncateTopOnly TruncationStrategy = "top_only"

	// TruncateBalanced is TruncateTopOnly plus a word-by-word prefix of the
	// first excluded chunk when enough budget remains.
	TruncateBalanced TruncationStrategy = "balanced"
)

// ContextWindow is the assembled, token-budgeted context blob.
// TotalTokens <= max_tokens - reserved_tokens always holds; it is measured
// by re-tokenizing the assembled text, not summed from chunk estimates.
type ContextWindow struct {
	Text             string
	TotalTokens      int
	ChunksIncluded   int
	ChunksTruncated  int
	SourceReferences []string

	// Strategy records which truncation strategy produced the window.
	Strategy TruncationStrategy
}

// Reference is a deduplicated per-document source entry extracted from a
// result list. Lists are ordered descending by BestScore.
type Reference struct {
	DocumentID string
	Title      string

	// ChunkCount is how many result chunks came from this document.
	ChunkCount int

	// BestScore is the highest relevance score among those chunks.
	BestScore float64
}

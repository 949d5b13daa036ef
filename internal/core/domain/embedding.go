package domain

// EmbeddingResult is a generated (or cache-served) vector for a piece of text.
type EmbeddingResult struct {
	// Vector is the embedding. Its length is constant per ModelID.
	Vector []float32

	// SourceText is the text that was embedded.
	SourceText string

	// TokenCount is the provider-reported token count for SourceText.
	// Zero when the result was served from cache.
	TokenCount int

	// ModelID is the embedding model that produced the vector.
	ModelID string

	// Cached is true when the vector was served from the cache without
	// touching the provider.
	Cached bool
}

// Usage reports token consumption for a single provider call.
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

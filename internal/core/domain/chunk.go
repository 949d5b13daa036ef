package domain

// ChunkMetadata carries the well-known metadata fields attached to a chunk,
// plus an open extension map for caller-specific data.
//
// The closed fields are the ones the pipeline itself reads (filtering,
// source references). Extra is passed through to the vector index payload
// untouched; keys colliding with the well-known fields are ignored.
type ChunkMetadata struct {
	// DocumentID identifies the source document. Always set.
	DocumentID string

	// DocumentType is the caller-supplied format hint ("text", "markdown", "pdf").
	DocumentType string

	// Title is the human-readable document title, if known.
	Title string

	// PageNumber is the 1-based page the chunk starts on. Zero means unknown.
	PageNumber int

	// PageStart and PageEnd describe a page range when the chunk spans pages.
	// Zero means unknown.
	PageStart int
	PageEnd   int

	// Section is a section or chapter label, if known.
	Section string

	// Extra holds caller-specific metadata passed through to the index payload.
	Extra map[string]string
}

// Chunk is a token-bounded, possibly-overlapping contiguous span of a
// document's text.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// Index is the position of this chunk within the document, assigned
	// sequentially over retained chunks starting at 0. Strictly increasing.
	Index int

	// StartChar and EndChar are byte offsets into the original document text.
	// StartChar < EndChar always holds. Offsets are preserved even when
	// undersized neighbours are dropped, so spans remain addressable.
	StartChar int
	EndChar   int

	// TokenCount is the exact token count of Text.
	TokenCount int

	// Metadata describes the source document.
	Metadata ChunkMetadata
}

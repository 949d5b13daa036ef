// Package chunker splits document text into token-bounded, overlapping
// chunks whose boundaries prefer semantic units.
//
// Splitting walks a separator hierarchy (paragraph, line, sentence
// punctuation, space, character) and packs the resulting parts into
// windows sized by an approximate character budget. Token counts are then
// measured exactly; oversized windows are re-split with a tighter budget
// and undersized ones are dropped. The whole process runs over an explicit
// work stack so pathological inputs cannot exhaust the goroutine stack.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/tokenizer"
)

// Default sizing, all in tokens.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 2000
)

// FormatMarkdown selects the markdown-aware separator hierarchy.
const FormatMarkdown = "markdown"

// maxSplitDepth bounds how many times an oversized window is re-split
// before it is kept as-is.
const maxSplitDepth = 8

var textSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Markdown prefers heading and fence boundaries before falling through to
// the plain-text hierarchy. Size and overlap contracts are unchanged.
var markdownSeparators = []string{"\n# ", "\n## ", "\n### ", "\n```", "\n\n", "\n", ". ", "! ", "? ", " "}

// Chunker splits text into token-bounded chunks. Chunkers are pure and
// side-effect-free; a single instance is safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
	minSize   int
	maxSize   int
	tok       *tokenizer.Tokenizer
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinChunkSize sets the token count below which a segment is dropped.
func WithMinChunkSize(size int) Option {
	return func(c *Chunker) {
		if size >= 0 {
			c.minSize = size
		}
	}
}

// WithMaxChunkSize sets the token count above which a segment is re-split.
func WithMaxChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// New creates a chunker using the given tokenizer for exact counts.
func New(tok *tokenizer.Tokenizer, opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		minSize:   DefaultMinChunkSize,
		maxSize:   DefaultMaxChunkSize,
		tok:       tok,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tok == nil {
		c.tok = tokenizer.New()
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	if c.maxSize < c.chunkSize {
		c.maxSize = c.chunkSize
	}
	return c
}

// span is a half-open byte range into the original text.
type span struct {
	start, end int
}

// work is one pending region on the split stack.
type work struct {
	span
	charBudget  int
	charOverlap int
	sepIdx      int
	depth       int
}

// Chunk splits text into ordered chunks. Empty or whitespace-only input
// returns nil. Chunk indexes are assigned sequentially over retained
// chunks only; character spans keep the true offsets even across dropped
// segments.
func (c *Chunker) Chunk(text, documentID, formatHint string, meta domain.ChunkMetadata) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	meta.DocumentID = documentID
	if meta.DocumentType == "" {
		meta.DocumentType = formatHint
	}

	seps := textSeparators
	if formatHint == FormatMarkdown {
		seps = markdownSeparators
	}

	charBudget := c.chunkSize * tokenizer.ApproxCharsPerToken
	charOverlap := c.overlap * tokenizer.ApproxCharsPerToken

	var retained []domain.Chunk
	stack := []work{{span{0, len(text)}, charBudget, charOverlap, 0, 0}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if w.end-w.start <= w.charBudget {
			if more := c.finalize(text, w, meta, &retained); more != nil {
				stack = append(stack, *more)
			}
			continue
		}

		region := text[w.start:w.end]
		sepIdx, ok := chooseSeparator(region, seps, w.sepIdx)
		var windows []span
		if !ok {
			windows = charWindows(text, w.span, w.charBudget, w.charOverlap)
		} else {
			parts := splitParts(region, w.start, seps[sepIdx])
			windows = pack(parts, w.charBudget, w.charOverlap)
		}

		// Push in reverse so the leftmost window is processed first and
		// output stays in document order.
		for i := len(windows) - 1; i >= 0; i-- {
			next := w
			next.span = windows[i]
			if ok {
				next.sepIdx = sepIdx
			}
			// A window identical to the region means the separator could
			// not break it; move down the hierarchy to guarantee progress.
			if windows[i] == w.span {
				next.sepIdx = sepIdx + 1
			}
			stack = append(stack, next)
		}
	}

	for i := range retained {
		retained[i].Index = i
	}
	return retained
}

// finalize measures a candidate window. It either retains it as a chunk,
// drops it as undersized, or returns a re-split work item when the exact
// token count exceeds the maximum.
func (c *Chunker) finalize(text string, w work, meta domain.ChunkMetadata, retained *[]domain.Chunk) *work {
	seg := text[w.start:w.end]
	tokens := c.tok.Count(seg)

	if tokens > c.maxSize && w.depth < maxSplitDepth {
		// Tighter character budget derived from the measured density,
		// with halved overlap, as for the recursive re-split contract.
		pieces := (tokens + c.chunkSize - 1) / c.chunkSize
		budget := (w.end - w.start) / pieces
		if budget < tokenizer.ApproxCharsPerToken {
			budget = tokenizer.ApproxCharsPerToken
		}
		return &work{w.span, budget, w.charOverlap / 2, 0, w.depth + 1}
	}

	if tokens < c.minSize {
		// Dropped by policy. The span is simply not retained; offsets of
		// neighbouring chunks are absolute, so nothing shifts.
		return nil
	}

	*retained = append(*retained, domain.Chunk{
		Text:       seg,
		StartChar:  w.start,
		EndChar:    w.end,
		TokenCount: tokens,
		Metadata:   meta,
	})
	return nil
}

// chooseSeparator returns the first separator at or after from that splits
// region into at least two parts.
func chooseSeparator(region string, seps []string, from int) (int, bool) {
	for i := from; i < len(seps); i++ {
		idx := strings.Index(region, seps[i])
		if idx >= 0 && idx+len(seps[i]) < len(region) {
			return i, true
		}
	}
	return 0, false
}

// splitParts cuts region at every occurrence of sep, keeping the separator
// attached to the preceding part so the parts tile the region exactly.
// Spans are absolute (base is the region's offset in the document).
func splitParts(region string, base int, sep string) []span {
	var parts []span
	start := 0
	for {
		idx := strings.Index(region[start:], sep)
		if idx < 0 {
			break
		}
		end := start + idx + len(sep)
		parts = append(parts, span{base + start, base + end})
		start = end
	}
	if start < len(region) {
		parts = append(parts, span{base + start, base + len(region)})
	}
	return parts
}

// pack greedily merges contiguous parts into windows of at most budget
// characters, carrying a tail of up to overlap characters into the next
// window. Consecutive window starts are strictly increasing.
func pack(parts []span, budget, overlap int) []span {
	if len(parts) == 0 {
		return nil
	}
	var windows []span
	first := 0
	for i := 0; i < len(parts); i++ {
		if i == first {
			continue
		}
		cur := parts[i-1].end - parts[first].start
		plen := parts[i].end - parts[i].start
		if cur+plen <= budget {
			continue
		}
		windows = append(windows, span{parts[first].start, parts[i-1].end})
		for first < i {
			cur = parts[i-1].end - parts[first].start
			if cur <= overlap && cur+plen <= budget {
				break
			}
			first++
		}
	}
	windows = append(windows, span{parts[first].start, parts[len(parts)-1].end})
	return windows
}

// charWindows is the last-resort splitter for text with no separators:
// fixed-size character windows stepped by budget minus overlap. Both
// window edges are snapped to rune boundaries so multibyte text never
// yields an invalid UTF-8 chunk.
func charWindows(text string, region span, budget, overlap int) []span {
	step := budget - overlap
	if step <= 0 {
		step = budget
	}
	var windows []span
	s := region.start
	for s < region.end {
		e := s + budget
		if e >= region.end {
			windows = append(windows, span{s, region.end})
			break
		}
		for e > s && !utf8.RuneStart(text[e]) {
			e--
		}
		windows = append(windows, span{s, e})
		s += step
		for s < region.end && !utf8.RuneStart(text[s]) {
			s++
		}
	}
	return windows
}

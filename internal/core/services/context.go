package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/tokenizer"
)

// Context builder defaults, all in tokens.
const (
	DefaultMaxTokens         = 4000
	DefaultReservedTokens    = 300
	DefaultReservedWithQuery = 600

	// minPartialTokens is the smallest remaining budget worth spending on
	// a partial chunk under the balanced strategy.
	minPartialTokens = 100

	// partialSafetyMargin keeps the word-by-word prefix clear of the
	// budget edge.
	partialSafetyMargin = 10
)

// chunkSeparator joins included chunks in the assembled window.
const chunkSeparator = "\n\n---\n\n"

// ContextConfig configures the context builder.
type ContextConfig struct {
	// MaxTokens is the total window budget.
	MaxTokens int

	// ReservedTokens is held back for downstream formatting.
	ReservedTokens int

	// ReservedWithQuery replaces ReservedTokens when a query string is
	// included, leaving room for the query's own tokens.
	ReservedWithQuery int

	// Strategy selects the truncation behaviour.
	Strategy domain.TruncationStrategy
}

func (c *ContextConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.ReservedTokens <= 0 {
		c.ReservedTokens = DefaultReservedTokens
	}
	if c.ReservedWithQuery <= 0 {
		c.ReservedWithQuery = DefaultReservedWithQuery
	}
	if c.Strategy == "" {
		c.Strategy = domain.TruncateBalanced
	}
}

// ContextBuilder assembles ranked chunks into a token-budgeted context
// window with source references. Builders are stateless and safe for
// concurrent use.
type ContextBuilder struct {
	tok *tokenizer.Tokenizer
	cfg ContextConfig
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(tok *tokenizer.Tokenizer, cfg ContextConfig) *ContextBuilder {
	cfg.applyDefaults()
	if tok == nil {
		tok = tokenizer.New()
	}
	return &ContextBuilder{tok: tok, cfg: cfg}
}

// Build assembles a context window from ranked results. The query is not
// embedded in the window text; passing it only raises the reserved budget.
// The returned TotalTokens never exceeds MaxTokens minus the reserve.
func (b *ContextBuilder) Build(query string, results []domain.SearchResult) domain.ContextWindow {
	reserved := b.cfg.ReservedTokens
	if query != "" {
		reserved = b.cfg.ReservedWithQuery
	}
	available := b.cfg.MaxTokens - reserved

	window := domain.ContextWindow{Strategy: b.cfg.Strategy}
	if available <= 0 || len(results) == 0 {
		window.ChunksTruncated = len(results)
		return window
	}

	sepTokens := b.tok.Count(chunkSeparator)
	var blocks []string
	var refs []string
	total := 0
	excluded := -1

	for i, r := range results {
		ref := sourceReference(r.Payload)
		block := ref + "\n" + r.Text
		cost := b.tok.Count(block)
		if len(blocks) > 0 {
			cost += sepTokens
		}
		if total+cost > available {
			excluded = i
			break
		}
		blocks = append(blocks, block)
		refs = append(refs, ref)
		total += cost
	}

	included := len(blocks)
	truncated := 0
	if excluded >= 0 {
		truncated = len(results) - excluded
	}

	if b.cfg.Strategy == domain.TruncateBalanced && excluded >= 0 && available-total > minPartialTokens {
		if block, ref, ok := b.partialBlock(results[excluded], available-total, included > 0, sepTokens); ok {
			blocks = append(blocks, block)
			refs = append(refs, ref)
			included++
			truncated--
		}
	}

	text, refs, totalTokens, dropped := b.trimToBudget(blocks, refs, available)
	included -= dropped
	truncated += dropped

	window.Text = text
	window.TotalTokens = totalTokens
	window.ChunksIncluded = included
	window.ChunksTruncated = truncated
	window.SourceReferences = refs
	return window
}

// trimToBudget joins the blocks and, if re-tokenizing the joined text
// overruns the budget, drops whole blocks from the end until it fits.
// Every surviving reference points at intact block text.
func (b *ContextBuilder) trimToBudget(blocks, refs []string, available int) (string, []string, int, int) {
	text := strings.Join(blocks, chunkSeparator)
	total := b.tok.Count(text)
	dropped := 0
	for total > available && len(blocks) > 0 {
		blocks = blocks[:len(blocks)-1]
		refs = refs[:len(refs)-1]
		dropped++
		text = strings.Join(blocks, chunkSeparator)
		total = b.tok.Count(text)
	}
	return text, refs, total, dropped
}

// partialBlock builds a word-by-word prefix of the first excluded chunk,
// suffixed with an ellipsis, within the remaining budget.
func (b *ContextBuilder) partialBlock(r domain.SearchResult, remaining int, needsSep bool, sepTokens int) (string, string, bool) {
	ref := sourceReference(r.Payload)
	budget := remaining - partialSafetyMargin - b.tok.Count(ref+"\n")
	if needsSep {
		budget -= sepTokens
	}
	if budget <= 0 {
		return "", "", false
	}

	words := strings.Fields(r.Text)
	var prefix strings.Builder
	for _, w := range words {
		candidate := prefix.String()
		if candidate != "" {
			candidate += " "
		}
		candidate += w
		if b.tok.Count(candidate) > budget {
			break
		}
		if prefix.Len() > 0 {
			prefix.WriteString(" ")
		}
		prefix.WriteString(w)
	}

	if prefix.Len() == 0 {
		return "", "", false
	}
	return ref + "\n" + prefix.String() + "...", ref, true
}

// sourceReference builds the deterministic reference line for a chunk:
// document title or ID, the best available location (explicit page, then
// page range, then section, else "unknown"), and the chunk index.
func sourceReference(p domain.Payload) string {
	name := p.Title
	if name == "" {
		name = p.DocumentID
	}

	location := "unknown"
	switch {
	case p.PageNumber > 0:
		location = fmt.Sprintf("page %d", p.PageNumber)
	case p.PageStart > 0 && p.PageEnd >= p.PageStart:
		location = fmt.Sprintf("pages %d-%d", p.PageStart, p.PageEnd)
	case p.Section != "":
		location = p.Section
	}

	return fmt.Sprintf("[Source: %s, %s, chunk %d]", name, location, p.ChunkIndex)
}

// ExtractReferences deduplicates results into one reference per document,
// carrying the chunk count and best score, ordered by best score
// descending.
func ExtractReferences(results []domain.SearchResult) []domain.Reference {
	byDoc := make(map[string]*domain.Reference)
	var order []string

	for _, r := range results {
		id := r.Payload.DocumentID
		ref, ok := byDoc[id]
		if !ok {
			byDoc[id] = &domain.Reference{
				DocumentID: id,
				Title:      r.Payload.Title,
				ChunkCount: 1,
				BestScore:  r.Score,
			}
			order = append(order, id)
			continue
		}
		ref.ChunkCount++
		if r.Score > ref.BestScore {
			ref.BestScore = r.Score
		}
	}

	refs := make([]domain.Reference, 0, len(order))
	for _, id := range order {
		refs = append(refs, *byDoc[id])
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].BestScore > refs[j].BestScore
	})
	return refs
}

// Package tokenizer provides exact token counting and token-bounded
// truncation for the chunker and the context builder.
//
// Counting uses the cl100k_base BPE encoding. When the encoding cannot be
// loaded (offline environments, tests), the tokenizer falls back to an
// approximate count of one token per four characters, which is the same
// ratio the chunker uses to convert token budgets into character budgets.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for token accounting.
const DefaultEncoding = "cl100k_base"

// ApproxCharsPerToken is the character-per-token ratio of the fallback
// estimator, also used by callers to derive character budgets.
const ApproxCharsPerToken = 4

// Tokenizer counts and truncates text in tokens.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New returns a tokenizer backed by the cl100k_base encoding, degrading to
// the approximate estimator when the encoding is unavailable.
func New() *Tokenizer {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// NewApproximate returns a tokenizer that always uses the character-ratio
// estimator. Deterministic and dependency-free; used in tests.
func NewApproximate() *Tokenizer {
	return &Tokenizer{}
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	n := len(text)
	count := n / ApproxCharsPerToken
	if n%ApproxCharsPerToken != 0 {
		count++
	}
	return count
}

// Truncate returns a prefix of text containing at most maxTokens tokens.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if t.Count(text) <= maxTokens {
		return text
	}
	if t.enc != nil {
		tokens := t.enc.Encode(text, nil, nil)
		return t.enc.Decode(tokens[:maxTokens])
	}
	// Approximate: cut at the character budget, snapping back to a word
	// boundary so the prefix stays readable.
	limit := maxTokens * ApproxCharsPerToken
	if limit >= len(text) {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func TestPayloadToMapOmitsZeroOptionals(t *testing.T) {
	m := payloadToMap(domain.Payload{
		DocumentID: "doc-1",
		ChunkIndex: 0,
		Text:       "body",
	})

	assert.Equal(t, "doc-1", m[keyDocumentID])
	assert.Equal(t, 0, m[keyChunkIndex])
	assert.Equal(t, "body", m[keyText])
	assert.NotContains(t, m, keyTitle)
	assert.NotContains(t, m, keyPageNumber)
}

func TestPayloadToMapExtraCannotShadowReserved(t *testing.T) {
	m := payloadToMap(domain.Payload{
		DocumentID: "doc-1",
		Text:       "body",
		Extra: map[string]string{
			"document_id": "evil",
			"lang":        "en",
		},
	})

	assert.Equal(t, "doc-1", m[keyDocumentID])
	assert.Equal(t, "en", m["lang"])
}

func TestPayloadRoundTrip(t *testing.T) {
	in := domain.Payload{
		DocumentID:   "doc-1",
		ChunkIndex:   4,
		Text:         "chunk body",
		DocumentType: "report",
		Title:        "Annual Report",
		Section:      "Methods",
		PageNumber:   12,
		Extra:        map[string]string{"lang": "en"},
	}

	// JSON decoding turns ints into float64; simulate the wire hop.
	wire := payloadToMap(in)
	wire[keyChunkIndex] = float64(4)
	wire[keyPageNumber] = float64(12)

	out := payloadFromMap(wire)
	assert.Equal(t, in, out)
}

func TestPayloadFromMapDropsNonStringExtras(t *testing.T) {
	p := payloadFromMap(map[string]any{
		keyDocumentID: "doc-1",
		"lang":        "en",
		"weird":       []any{1, 2},
		"count":       float64(3),
	})

	assert.Equal(t, map[string]string{"lang": "en"}, p.Extra)
}

func TestBuildFilterEmpty(t *testing.T) {
	assert.Nil(t, buildFilter(nil))
	assert.Nil(t, buildFilter(domain.Filter{}))
	assert.Nil(t, buildFilter(domain.Filter{"key": {}}))
}

func TestBuildFilterSingleValue(t *testing.T) {
	f := buildFilter(domain.Filter{"document_id": {"doc-1"}})

	must := f["must"].([]any)
	require.Len(t, must, 1)
	cond := must[0].(map[string]any)
	assert.Equal(t, "document_id", cond["key"])
	assert.Equal(t, "doc-1", cond["match"].(map[string]any)["value"])
}

func TestBuildFilterMultiValueBecomesShould(t *testing.T) {
	f := buildFilter(domain.Filter{"document_id": {"a", "b", "c"}})

	must := f["must"].([]any)
	require.Len(t, must, 1)
	should := must[0].(map[string]any)["should"].([]any)
	assert.Len(t, should, 3)
}

func TestBuildFilterDeterministicKeyOrder(t *testing.T) {
	f := domain.Filter{
		"section":       {"Methods"},
		"document_id":   {"doc-1"},
		"document_type": {"report"},
	}

	first := buildFilter(f)
	must := first["must"].([]any)
	require.Len(t, must, 3)
	assert.Equal(t, "document_id", must[0].(map[string]any)["key"])
	assert.Equal(t, "document_type", must[1].(map[string]any)["key"])
	assert.Equal(t, "section", must[2].(map[string]any)["key"])
}

func TestMatchConditionNumericKeys(t *testing.T) {
	cond := matchCondition("chunk_index", "7")
	assert.Equal(t, 7, cond["match"].(map[string]any)["value"])

	cond = matchCondition("page_number", "12")
	assert.Equal(t, 12, cond["match"].(map[string]any)["value"])

	// Non-numeric value for a numeric key stays a string.
	cond = matchCondition("chunk_index", "abc")
	assert.Equal(t, "abc", cond["match"].(map[string]any)["value"])

	cond = matchCondition("title", "42")
	assert.Equal(t, "42", cond["match"].(map[string]any)["value"])
}

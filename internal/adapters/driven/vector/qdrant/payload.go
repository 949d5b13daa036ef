package qdrant

import (
	"sort"
	"strconv"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// Payload keys reserved by the pipeline. Extra metadata keys colliding
// with these are dropped rather than allowed to shadow them.
const (
	keyDocumentID   = "document_id"
	keyChunkIndex   = "chunk_index"
	keyText         = "text"
	keyDocumentType = "document_type"
	keyTitle        = "title"
	keySection      = "section"
	keyPageNumber   = "page_number"
	keyPageStart    = "page_start"
	keyPageEnd      = "page_end"
)

var reservedKeys = map[string]bool{
	keyDocumentID:   true,
	keyChunkIndex:   true,
	keyText:         true,
	keyDocumentType: true,
	keyTitle:        true,
	keySection:      true,
	keyPageNumber:   true,
	keyPageStart:    true,
	keyPageEnd:      true,
}

// payloadToMap flattens a typed payload into the wire format.
// Well-known fields with zero values are omitted, except the always-present
// document_id, chunk_index and text.
func payloadToMap(p domain.Payload) map[string]any {
	m := map[string]any{
		keyDocumentID: p.DocumentID,
		keyChunkIndex: p.ChunkIndex,
		keyText:       p.Text,
	}
	if p.DocumentType != "" {
		m[keyDocumentType] = p.DocumentType
	}
	if p.Title != "" {
		m[keyTitle] = p.Title
	}
	if p.Section != "" {
		m[keySection] = p.Section
	}
	if p.PageNumber > 0 {
		m[keyPageNumber] = p.PageNumber
	}
	if p.PageStart > 0 {
		m[keyPageStart] = p.PageStart
	}
	if p.PageEnd > 0 {
		m[keyPageEnd] = p.PageEnd
	}
	for k, v := range p.Extra {
		if !reservedKeys[k] {
			m[k] = v
		}
	}
	return m
}

// payloadFromMap rebuilds a typed payload from the wire format. Unknown
// keys land in Extra when their values are strings; other value types are
// provider noise and dropped.
func payloadFromMap(m map[string]any) domain.Payload {
	p := domain.Payload{
		DocumentID:   asString(m[keyDocumentID]),
		ChunkIndex:   asInt(m[keyChunkIndex]),
		Text:         asString(m[keyText]),
		DocumentType: asString(m[keyDocumentType]),
		Title:        asString(m[keyTitle]),
		Section:      asString(m[keySection]),
		PageNumber:   asInt(m[keyPageNumber]),
		PageStart:    asInt(m[keyPageStart]),
		PageEnd:      asInt(m[keyPageEnd]),
	}
	for k, v := range m {
		if reservedKeys[k] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[k] = s
	}
	return p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// buildFilter translates a domain filter into Qdrant's filter tree.
//
// Conditions across distinct keys are AND (each becomes an entry under
// "must"); multiple values under one key are OR (a nested "should" group).
// The chunk_index key matches the integer payload field.
func buildFilter(f domain.Filter) map[string]any {
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var must []any
	for _, key := range keys {
		values := f[key]
		switch len(values) {
		case 0:
			continue
		case 1:
			must = append(must, matchCondition(key, values[0]))
		default:
			should := make([]any, len(values))
			for i, v := range values {
				should[i] = matchCondition(key, v)
			}
			must = append(must, map[string]any{"should": should})
		}
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchCondition(key, value string) map[string]any {
	var match any = value
	if key == keyChunkIndex || key == keyPageNumber || key == keyPageStart || key == keyPageEnd {
		if i, err := strconv.Atoi(value); err == nil {
			match = i
		}
	}
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": match},
	}
}

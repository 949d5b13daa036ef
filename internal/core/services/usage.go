package services

import (
	"sync"

	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure the implementations satisfy the port.
var (
	_ driven.UsageRecorder = (*UsageCounters)(nil)
	_ driven.UsageRecorder = NopUsageRecorder{}
)

// UsageTotals is the accumulated consumption for one model.
type UsageTotals struct {
	Calls  int64
	Tokens int64
}

// UsageCounters is a process-local usage recorder. The external
// cost-tracking collaborator reads snapshots; cached embeddings never
// reach it because they involve no provider call.
type UsageCounters struct {
	mu     sync.Mutex
	totals map[string]UsageTotals
}

// NewUsageCounters creates an empty recorder.
func NewUsageCounters() *UsageCounters {
	return &UsageCounters{totals: make(map[string]UsageTotals)}
}

// RecordEmbedding records one successful provider call.
func (u *UsageCounters) RecordEmbedding(model string, tokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := u.totals[model]
	t.Calls++
	t.Tokens += int64(tokens)
	u.totals[model] = t
}

// Snapshot returns a copy of the per-model totals.
func (u *UsageCounters) Snapshot() map[string]UsageTotals {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]UsageTotals, len(u.totals))
	for k, v := range u.totals {
		out[k] = v
	}
	return out
}

// NopUsageRecorder discards usage reports.
type NopUsageRecorder struct{}

// RecordEmbedding implements driven.UsageRecorder.
func (NopUsageRecorder) RecordEmbedding(string, int) {}

package driven

// UsageRecorder receives usage counters for successful provider calls.
// The cost-tracking collaborator consuming these lives outside the
// pipeline; a process-local counter implementation backs the status
// surface.
type UsageRecorder interface {
	// RecordEmbedding records one successful provider call and its token
	// consumption.
	RecordEmbedding(model string, tokens int)
}

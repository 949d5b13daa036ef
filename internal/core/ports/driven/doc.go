// Package driven defines the outbound ports of the pipeline: the
// interfaces infrastructure adapters implement (embedding provider,
// vector cache, vector index, rerank scorer, usage recorder).
package driven

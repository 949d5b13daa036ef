// Package services implements the pipeline's business logic over the
// driven ports: the caching/rate-limited embedding client, the reranker
// worker pool, the context builder, and the ingest/query orchestration.
package services

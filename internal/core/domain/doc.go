// Package domain contains the core business entities of the retrieval
// pipeline: chunks, embeddings, index points, search and rerank results,
// and context windows.
//
// The domain layer has no dependencies on adapters or external services.
// All types here are plain data; behaviour lives in the services layer.
package domain

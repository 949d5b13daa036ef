package services

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/custodia-labs/ragpipe/internal/chunker"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// pointNamespace is the UUIDv5 namespace for deterministic point IDs.
// Changing it orphans every existing point, so it never changes.
var pointNamespace = uuid.MustParse("1b671a64-40d5-491e-99b0-da01ff1f3341")

// IngestService runs the ingestion flow: chunk, embed, upsert.
type IngestService struct {
	chunker  *chunker.Chunker
	embedder *EmbeddingClient
	index    driven.VectorIndex
	log      *logrus.Entry
}

// NewIngestService creates an ingest service.
func NewIngestService(ch *chunker.Chunker, embedder *EmbeddingClient, index driven.VectorIndex) *IngestService {
	return &IngestService{
		chunker:  ch,
		embedder: embedder,
		index:    index,
		log:      logger.WithComponent("ingest"),
	}
}

// Ingest chunks, embeds and indexes a document. Point IDs derive from
// (document_id, chunk_index, content hash), so re-ingesting unchanged
// content overwrites in place.
func (s *IngestService) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	chunks := s.chunker.Chunk(req.Text, req.DocumentID, req.FormatHint, req.Metadata)
	if len(chunks) == 0 {
		return domain.IngestResult{}, fmt.Errorf("document %s: %w", req.DocumentID, domain.ErrEmptyDocument)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("embed document %s: %w", req.DocumentID, err)
	}

	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions(), domain.DistanceCosine); err != nil {
		return domain.IngestResult{}, fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]domain.IndexPoint, len(chunks))
	for i, c := range chunks {
		points[i] = domain.IndexPoint{
			ID:      PointID(req.DocumentID, c.Index, c.Text),
			Vector:  embeddings[i].Vector,
			Payload: chunkPayload(c),
		}
	}

	if err := s.index.Upsert(ctx, points); err != nil {
		return domain.IngestResult{}, fmt.Errorf("index document %s: %w", req.DocumentID, err)
	}

	cached := 0
	for _, e := range embeddings {
		if e.Cached {
			cached++
		}
	}
	s.log.WithFields(logrus.Fields{
		"document_id": req.DocumentID,
		"chunks":      len(chunks),
		"cached":      cached,
	}).Info("document indexed")

	return domain.IngestResult{
		DocumentID:    req.DocumentID,
		ChunkCount:    len(chunks),
		StoredVectors: len(points),
	}, nil
}

// Reindex drops a document's points and ingests it afresh. The explicit
// delete covers content changes, where new chunk hashes would otherwise
// leave stale points behind.
func (s *IngestService) Reindex(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	if err := s.index.DeleteByDocument(ctx, req.DocumentID); err != nil {
		return domain.IngestResult{}, fmt.Errorf("delete document %s: %w", req.DocumentID, err)
	}
	return s.Ingest(ctx, req)
}

// Delete removes every indexed point of a document.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	s.log.WithField("document_id", documentID).Info("document removed from index")
	return nil
}

// PointID derives the deterministic vector point ID for a chunk.
func PointID(documentID string, chunkIndex int, text string) string {
	sum := sha256.Sum256([]byte(text))
	name := fmt.Sprintf("%s:%d:%x", documentID, chunkIndex, sum[:8])
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// chunkPayload maps a chunk onto its index payload.
func chunkPayload(c domain.Chunk) domain.Payload {
	return domain.Payload{
		DocumentID:   c.Metadata.DocumentID,
		ChunkIndex:   c.Index,
		Text:         c.Text,
		DocumentType: c.Metadata.DocumentType,
		Title:        c.Metadata.Title,
		Section:      c.Metadata.Section,
		PageNumber:   c.Metadata.PageNumber,
		PageStart:    c.Metadata.PageStart,
		PageEnd:      c.Metadata.PageEnd,
		Extra:        c.Metadata.Extra,
	}
}

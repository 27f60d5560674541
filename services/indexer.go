package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/internal/telemetry"
	"knowledge-base-platform/models"
	"knowledge-base-platform/utils"
)

// Indexer runs the ingestion pass for one document: chunk, embed the
// batch, fan the upserts out to the vector index, then flip the
// reconciliation flag. No transaction spans the two stores; the design
// keeps the document row on every failure and uses is_processed as the
// flag an operator or the reaper can reconcile against.
type Indexer struct {
	chunker   *Chunker
	embedder  Embedder
	vectors   VectorIndex
	documents DocumentStore
	metrics   *telemetry.Metrics

	// Bounded fan-out for chunk upserts. Chunk keys are disjoint, so
	// completion order does not matter.
	upsertConcurrency int
}

// NewIndexer wires the pipeline. metrics may be nil.
func NewIndexer(chunker *Chunker, embedder Embedder, vectors VectorIndex, documents DocumentStore, metrics *telemetry.Metrics) *Indexer {
	return &Indexer{
		chunker:           chunker,
		embedder:          embedder,
		vectors:           vectors,
		documents:         documents,
		metrics:           metrics,
		upsertConcurrency: 8,
	}
}

// Index processes one document end to end. On success the row carries
// is_processed=true and vector_id=id; on any failure the reason is
// recorded, the row survives and the document stays out of retrieval
// until reprocessed.
func (ix *Indexer) Index(ctx context.Context, doc *models.KnowledgeDocument) error {
	start := time.Now()
	id := doc.ID.Hex()

	if strings.TrimSpace(doc.Title) == "" {
		return ix.fail(ctx, id, ErrEmptyTitle)
	}
	if doc.Content == "" && len(doc.CompressedContent) > 0 {
		text, err := utils.DecompressText(doc.CompressedContent, utils.CompressionAlgorithm(doc.Compression))
		if err != nil {
			return ix.fail(ctx, id, fmt.Errorf("decompress content: %w", err))
		}
		doc.Content = text
	}
	if strings.TrimSpace(doc.Content) == "" {
		return ix.fail(ctx, id, ErrEmptyContent)
	}

	if err := ix.documents.MarkProcessing(ctx, id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	chunks, err := ix.chunker.Split(doc.Content)
	if err != nil {
		return ix.fail(ctx, id, err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return ix.fail(ctx, id, err)
	}
	if len(vectors) != len(chunks) {
		// Integrity check: never silently truncate or pad the batch.
		return ix.fail(ctx, id, fmt.Errorf("%w: %d vectors for %d chunks",
			ErrEmbeddingCountMismatch, len(vectors), len(chunks)))
	}

	now := time.Now().Unix()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.upsertConcurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			return ix.vectors.Upsert(gctx, models.VectorRecord{
				ID:        models.VectorRecordID(id, chunks[i].Index),
				DocID:     id,
				Vector:    vectors[i],
				Title:     doc.Title,
				Content:   chunks[i].Text,
				Source:    doc.Source,
				OwnerID:   doc.OwnerID,
				Timestamp: now,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return ix.fail(ctx, id, err)
	}

	if err := ix.documents.MarkProcessed(ctx, id); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if ix.metrics != nil {
		ix.metrics.RecordIndexing(time.Since(start).Seconds(), len(chunks), "processed")
	}
	logger.Info("document indexed",
		"document_id", id, "owner_id", doc.OwnerID, "chunks", len(chunks))
	return nil
}

// Reprocess repairs a document's vector set: best-effort delete of the
// prior records, then a fresh indexing pass over the current content.
// Idempotent; safe from any terminal state.
func (ix *Indexer) Reprocess(ctx context.Context, documentID, ownerID string) (*models.KnowledgeDocument, error) {
	doc, err := ix.documents.Get(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}

	// A failed delete is not fatal: matching chunk keys are overwritten
	// by the upserts, and the reaper sweeps leftovers from a shrunk
	// chunk count.
	if err := ix.vectors.DeleteByDocument(ctx, documentID); err != nil {
		logger.Warn("pre-reprocess vector delete failed", "document_id", documentID, "error", err)
	}

	if err := ix.Index(ctx, doc); err != nil {
		logger.Error("reprocess failed", "document_id", documentID, "error", err)
	}

	return ix.documents.Get(ctx, documentID, ownerID)
}

// fail records the failure reason on the row and reports it. The row
// always survives; content is never lost to an indexing failure.
func (ix *Indexer) fail(ctx context.Context, id string, cause error) error {
	if ix.metrics != nil {
		ix.metrics.RecordIndexing(0, 0, "failed")
	}
	logger.Error("indexing failed", "document_id", id, "error", cause)
	if err := ix.documents.MarkFailed(ctx, id, cause.Error()); err != nil {
		logger.Error("failed to record indexing failure", "document_id", id, "error", err)
	}
	return cause
}

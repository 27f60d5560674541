package services

import (
	"context"

	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/internal/telemetry"
)

// OrphanReaper reconciles the vector index against the document store:
// vector records whose document row no longer exists are deleted. Runs
// on a schedule from the worker; a failed sweep is retried on the next
// tick.
type OrphanReaper struct {
	vectors   VectorIndex
	documents DocumentStore
	metrics   *telemetry.Metrics
}

func NewOrphanReaper(vectors VectorIndex, documents DocumentStore, metrics *telemetry.Metrics) *OrphanReaper {
	return &OrphanReaper{vectors: vectors, documents: documents, metrics: metrics}
}

// Sweep deletes vector records for documents that no longer have a row.
// Returns the number of orphaned documents reaped. Per-document errors
// are logged and skipped so one bad id does not stall the sweep.
func (r *OrphanReaper) Sweep(ctx context.Context) (int, error) {
	ids, err := r.vectors.DistinctDocumentIDs(ctx)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, id := range ids {
		exists, err := r.documents.Exists(ctx, id)
		if err != nil {
			logger.Warn("orphan check failed", "document_id", id, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := r.vectors.DeleteByDocument(ctx, id); err != nil {
			logger.Warn("orphan delete failed", "document_id", id, "error", err)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		logger.Info("orphan sweep complete", "scanned", len(ids), "reaped", reaped)
	}
	if r.metrics != nil && reaped > 0 {
		r.metrics.RecordOrphansReaped(int64(reaped))
	}
	return reaped, nil
}

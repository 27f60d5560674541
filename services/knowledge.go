package services

import (
	"context"
	"fmt"
	"strings"

	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/models"
	"knowledge-base-platform/utils"
)

// TaskEnqueuer hands a document off to the background worker. Satisfied
// by queue.Client; kept as an interface so tests can run without Redis.
type TaskEnqueuer interface {
	EnqueueIndexDocument(ctx context.Context, documentID, ownerID string, reprocess bool) error
}

// Bodies above this size are stored compressed on the row.
const compressAboveBytes = 100 * 1024

// KnowledgeService owns the document lifecycle: ingest, index (inline
// or queued), query, reprocess, delete. All reads and mutations are
// scoped to the calling owner.
type KnowledgeService struct {
	documents DocumentStore
	vectors   VectorIndex
	indexer   *Indexer
	retriever *Retriever
	queue     TaskEnqueuer

	// Documents at or under this byte size are indexed inline in the
	// request; larger ones go through the queue.
	syncLimit int64
}

func NewKnowledgeService(documents DocumentStore, vectors VectorIndex, indexer *Indexer, retriever *Retriever, queue TaskEnqueuer, syncLimit int64) *KnowledgeService {
	return &KnowledgeService{
		documents: documents,
		vectors:   vectors,
		indexer:   indexer,
		retriever: retriever,
		queue:     queue,
		syncLimit: syncLimit,
	}
}

// AddDocument validates and persists a document, then indexes it inline
// when small enough, otherwise enqueues it. Indexing failures do not
// fail the call; the returned row carries the status and reason.
func (s *KnowledgeService) AddDocument(ctx context.Context, ownerID string, req models.CreateDocumentRequest) (*models.KnowledgeDocument, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	docType := req.DocumentType
	if docType == "" {
		docType = models.DocTypeText
	}
	if !models.ValidDocumentType(docType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
	}

	doc := &models.KnowledgeDocument{
		OwnerID:      ownerID,
		Title:        title,
		Content:      req.Content,
		Source:       req.Source,
		DocumentType: docType,
		Metadata:     req.Metadata,
		Status:       models.StatusUploaded,
	}
	if len(req.Content) > compressAboveBytes {
		compressed, algo, err := utils.CompressText(req.Content)
		if err == nil && algo != utils.CompressionNone {
			doc.CompressedContent = compressed
			doc.Compression = string(algo)
			doc.Content = ""
		}
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	// Index from the plain body regardless of how the row stores it.
	doc.Content = req.Content

	if int64(len(req.Content)) <= s.syncLimit || s.queue == nil {
		// Inline path: the indexing outcome is visible on the returned
		// row, failure included.
		_ = s.indexer.Index(ctx, doc)
		return s.documents.Get(ctx, doc.ID.Hex(), ownerID)
	}

	if err := s.queue.EnqueueIndexDocument(ctx, doc.ID.Hex(), ownerID, false); err != nil {
		logger.Error("enqueue failed, indexing inline",
			"document_id", doc.ID.Hex(), "error", err)
		_ = s.indexer.Index(ctx, doc)
	}
	return s.documents.Get(ctx, doc.ID.Hex(), ownerID)
}

// GetDocument returns one owner-scoped document with its content
// restored from compressed storage when applicable.
func (s *KnowledgeService) GetDocument(ctx context.Context, documentID, ownerID string) (*models.KnowledgeDocument, error) {
	doc, err := s.documents.Get(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	restoreContent(doc)
	return doc, nil
}

// ListDocuments returns the owner's documents, newest first, without
// content bodies.
func (s *KnowledgeService) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]models.KnowledgeDocument, error) {
	return s.documents.List(ctx, ownerID, limit, offset)
}

// DeleteDocument removes the vector records first, then the row.
// Ordering matters: a crash between the two steps leaves an unindexed
// row rather than orphaned vectors.
func (s *KnowledgeService) DeleteDocument(ctx context.Context, documentID, ownerID string) error {
	if _, err := s.documents.Get(ctx, documentID, ownerID); err != nil {
		return err
	}
	if err := s.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return s.documents.Delete(ctx, documentID, ownerID)
}

// PurgeDocuments wipes the owner's entire knowledge base: every vector
// record first, then every row. Returns the number of rows removed.
func (s *KnowledgeService) PurgeDocuments(ctx context.Context, ownerID string) (int64, error) {
	if err := s.vectors.DeleteByOwner(ctx, ownerID); err != nil {
		return 0, fmt.Errorf("purge vectors: %w", err)
	}
	n, err := s.documents.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	logger.Info("knowledge base purged", "owner_id", ownerID, "documents", n)
	return n, nil
}

// ReprocessDocument re-runs the pipeline for a document, synchronously
// for small bodies and via the queue for large ones.
func (s *KnowledgeService) ReprocessDocument(ctx context.Context, documentID, ownerID string) (*models.KnowledgeDocument, error) {
	doc, err := s.documents.Get(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	restoreContent(doc)

	if int64(len(doc.Content)) <= s.syncLimit || s.queue == nil {
		return s.reprocessInline(ctx, doc, ownerID)
	}
	if err := s.queue.EnqueueIndexDocument(ctx, documentID, ownerID, true); err != nil {
		logger.Error("enqueue failed, reprocessing inline",
			"document_id", documentID, "error", err)
		return s.reprocessInline(ctx, doc, ownerID)
	}
	return s.documents.Get(ctx, documentID, ownerID)
}

func (s *KnowledgeService) reprocessInline(ctx context.Context, doc *models.KnowledgeDocument, ownerID string) (*models.KnowledgeDocument, error) {
	if err := s.vectors.DeleteByDocument(ctx, doc.ID.Hex()); err != nil {
		logger.Warn("pre-reprocess vector delete failed",
			"document_id", doc.ID.Hex(), "error", err)
	}
	_ = s.indexer.Index(ctx, doc)
	return s.documents.Get(ctx, doc.ID.Hex(), ownerID)
}

// Query runs an owner-scoped similarity search without generation.
func (s *KnowledgeService) Query(ctx context.Context, ownerID string, req models.QueryRequest) ([]models.SearchResult, error) {
	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return s.retriever.Search(ctx, req.Query, ownerID, req.TopK, threshold)
}

// RAGQuery runs retrieval and returns the passages plus the assembled
// prompt, without calling the generator. Useful for debugging what the
// model would be grounded on.
func (s *KnowledgeService) RAGQuery(ctx context.Context, ownerID string, req models.QueryRequest) (*models.RAGContext, error) {
	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return s.retriever.Retrieve(ctx, req.Query, ownerID, req.TopK, threshold)
}

// restoreContent inflates a row stored with a compressed body.
func restoreContent(doc *models.KnowledgeDocument) {
	if doc.Content != "" || len(doc.CompressedContent) == 0 {
		return
	}
	text, err := utils.DecompressText(doc.CompressedContent, utils.CompressionAlgorithm(doc.Compression))
	if err != nil {
		logger.Error("decompress document content failed",
			"document_id", doc.ID.Hex(), "error", err)
		return
	}
	doc.Content = text
}

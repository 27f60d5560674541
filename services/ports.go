package services

import (
	"context"

	"knowledge-base-platform/models"
)

// Driven ports for the pipeline. The concrete clients (Gemini, Mongo)
// live under internal/ and are injected at startup so tests can
// substitute fakes.

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, index-correspondent
	// with the input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the fixed vector dimension of the configured model.
	Dimensions() int
}

// VectorIndex is the external similarity-search service. Every
// operation that reads or deletes by tenant is owner-scoped; cross
// tenant leakage is prevented here, not by callers.
type VectorIndex interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, rec models.VectorRecord) error
	Search(ctx context.Context, embedding []float32, ownerID string, topK int, threshold float64) ([]models.SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByOwner(ctx context.Context, ownerID string) error
	// DistinctDocumentIDs lists every document prefix present in the
	// index. Used by the orphan reaper.
	DistinctDocumentIDs(ctx context.Context) ([]string, error)
}

// DocumentStore is the relational side of the pipeline: one row per
// KnowledgeDocument, owned by a user, tracking processing status.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.KnowledgeDocument) error
	Get(ctx context.Context, id, ownerID string) (*models.KnowledgeDocument, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]models.KnowledgeDocument, error)
	Delete(ctx context.Context, id, ownerID string) error
	// DeleteByOwner removes every row belonging to the owner and
	// reports how many were deleted.
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	// Exists reports whether a document row exists, regardless of owner.
	Exists(ctx context.Context, id string) (bool, error)
	// MarkProcessing flips the row into the processing state.
	MarkProcessing(ctx context.Context, id string) error
	// MarkProcessed records a successful indexing pass: is_processed
	// true and vector_id set to the document id.
	MarkProcessed(ctx context.Context, id string) error
	// MarkFailed records the failure reason and leaves the row intact.
	MarkFailed(ctx context.Context, id, reason string) error
}

// MessageStore persists chat exchanges per session.
type MessageStore interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	History(ctx context.Context, ownerID, sessionID string) ([]models.ChatMessage, error)
}

// Generator answers a retrieval context, optionally streaming.
type Generator interface {
	// Answer runs one blocking generation call. An empty passage list
	// degrades to plain (non-RAG) mode instead of failing.
	Answer(ctx context.Context, rc models.RAGContext) (Answer, error)
	// AnswerStream forwards each upstream chunk to onChunk as soon as
	// it arrives and returns the concatenation of all delivered chunks.
	// A mid-stream failure returns what was flushed plus the error.
	AnswerStream(ctx context.Context, rc models.RAGContext, onChunk func(text string)) (Answer, error)
}

// Answer is the result of one generation call.
type Answer struct {
	Text       string
	Model      string
	TokensUsed int
}

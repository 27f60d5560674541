package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing status values
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// Supported document types
const (
	DocTypeText     = "text"
	DocTypePDF      = "pdf"
	DocTypeDocx     = "docx"
	DocTypeXlsx     = "xlsx"
	DocTypeCSV      = "csv"
	DocTypeMarkdown = "markdown"
	DocTypeJSON     = "json"
)

// KnowledgeDocument is the relational record for one ingested document.
// The vector representation lives in the knowledge_vectors collection;
// IsProcessed is the reconciliation flag between the two stores.
type KnowledgeDocument struct {
	ID                primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	OwnerID           string                 `json:"owner_id" bson:"owner_id"`
	Title             string                 `json:"title" bson:"title"`
	Content           string                 `json:"content" bson:"content"`
	Source            string                 `json:"source,omitempty" bson:"source,omitempty"`
	DocumentType      string                 `json:"document_type" bson:"document_type"`
	Metadata          map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	VectorID          string                 `json:"vector_id,omitempty" bson:"vector_id,omitempty"`
	IsProcessed       bool                   `json:"is_processed" bson:"is_processed"`
	Status            string                 `json:"status" bson:"status"`
	ProcessingError   string                 `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
	CompressedContent []byte                 `json:"-" bson:"compressed_content,omitempty"`
	Compression       string                 `json:"-" bson:"compression,omitempty"`
	CreatedAt         time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" bson:"updated_at"`
}

// CreateDocumentRequest is the ingestion payload.
type CreateDocumentRequest struct {
	Title        string                 `json:"title" binding:"required,min=1,max=500"`
	Content      string                 `json:"content" binding:"required,min=1"`
	Source       string                 `json:"source,omitempty"`
	DocumentType string                 `json:"document_type,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// QueryRequest is the payload for similarity search and RAG queries.
// TopK and Threshold are optional; zero/nil means use server defaults.
type QueryRequest struct {
	Query     string   `json:"query" binding:"required,min=1,max=5000"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// ValidDocumentType reports whether t is one of the supported types.
func ValidDocumentType(t string) bool {
	switch t {
	case DocTypeText, DocTypePDF, DocTypeDocx, DocTypeXlsx, DocTypeCSV, DocTypeMarkdown, DocTypeJSON:
		return true
	}
	return false
}

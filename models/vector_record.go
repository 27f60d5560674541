package models

import "fmt"

// VectorRecord is one embedded chunk in the knowledge_vectors collection.
// The record id is "{documentID}_{chunkIndex}"; DocID materializes the
// prefix so per-document deletes and the orphan reaper can filter on it.
type VectorRecord struct {
	ID        string    `json:"id" bson:"_id"`
	DocID     string    `json:"doc_id" bson:"doc_id"`
	Vector    []float32 `json:"vector,omitempty" bson:"vector"`
	Title     string    `json:"title" bson:"title"`
	Content   string    `json:"content" bson:"content"`
	Source    string    `json:"source,omitempty" bson:"source,omitempty"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	Timestamp int64     `json:"timestamp" bson:"timestamp"`
}

// VectorRecordID builds the composite chunk key.
func VectorRecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// SearchResult is one ranked hit from the vector index. Score is
// normalized to [0,1], highest first.
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// Chunk is a transient passage produced by the chunker for one
// indexing pass. It is never persisted on its own.
type Chunk struct {
	Text  string
	Index int
	Total int
}

// RAGContext carries one retrieval pass: the query, the passages that
// cleared the score threshold, and the assembled prompt.
type RAGContext struct {
	Query    string         `json:"query"`
	Passages []SearchResult `json:"contexts"`
	Prompt   string         `json:"rag_prompt"`
}

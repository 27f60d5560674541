package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is one exchange persisted to the chat_messages collection.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   string             `bson:"owner_id" json:"owner_id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Message   string             `bson:"message" json:"message"`
	Reply     string             `bson:"reply" json:"reply"`
	Sources   []SearchResult     `bson:"sources,omitempty" json:"sources,omitempty"`
	Model     string             `bson:"model,omitempty" json:"model,omitempty"`
	TokenCost int                `bson:"token_cost" json:"token_cost"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type ChatRequest struct {
	Message   string   `json:"message" binding:"required,min=1,max=5000"`
	SessionID string   `json:"session_id,omitempty"`
	UseRAG    *bool    `json:"use_rag,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type ChatResponse struct {
	SessionID string         `json:"session_id"`
	Answer    string         `json:"answer"`
	Sources   []SearchResult `json:"sources"`
	Model     string         `json:"model,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type SessionHistory struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Stream event kinds for the SSE chat endpoint. A stream carries zero
// or more chunk events followed by exactly one done or error event.
const (
	StreamEventChunk = "chunk"
	StreamEventDone  = "done"
	StreamEventError = "error"
)

// StreamEvent is one framed unit on the chat event stream.
type StreamEvent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Sources   []SearchResult `json:"sources,omitempty"`
	Error     string         `json:"error,omitempty"`
}

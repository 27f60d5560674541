package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/models"
)

// ChatService answers user messages, grounded on the owner's knowledge
// base when RAG is enabled, and persists every completed exchange.
type ChatService struct {
	messages  MessageStore
	retriever *Retriever
	generator Generator
}

func NewChatService(messages MessageStore, retriever *Retriever, generator Generator) *ChatService {
	return &ChatService{
		messages:  messages,
		retriever: retriever,
		generator: generator,
	}
}

// buildContext resolves the session id and, when RAG is on, runs
// retrieval. A retrieval failure degrades to a non-grounded answer
// rather than failing the chat.
func (s *ChatService) buildContext(ctx context.Context, ownerID string, req models.ChatRequest) (string, models.RAGContext) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	useRAG := req.UseRAG == nil || *req.UseRAG
	rc := models.RAGContext{Query: req.Message}
	if useRAG {
		threshold := -1.0
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		got, err := s.retriever.Retrieve(ctx, req.Message, ownerID, req.TopK, threshold)
		if err != nil {
			if errors.Is(err, ErrInvalidQuery) {
				// Caller error, let validation surface it downstream.
				logger.Warn("invalid chat query", "owner_id", ownerID, "error", err)
			} else {
				logger.Error("retrieval failed, answering without context",
					"owner_id", ownerID, "error", err)
			}
		} else {
			rc = *got
		}
	}
	return sessionID, rc
}

// Chat runs one blocking exchange and saves it.
func (s *ChatService) Chat(ctx context.Context, ownerID string, req models.ChatRequest) (*models.ChatResponse, error) {
	sessionID, rc := s.buildContext(ctx, ownerID, req)

	ans, err := s.generator.Answer(ctx, rc)
	if err != nil {
		return nil, err
	}

	s.save(ctx, ownerID, sessionID, req.Message, ans, rc.Passages)
	return &models.ChatResponse{
		SessionID: sessionID,
		Answer:    ans.Text,
		Sources:   rc.Passages,
		Model:     ans.Model,
		Timestamp: time.Now(),
	}, nil
}

// ChatStream runs one streaming exchange. emit receives zero or more
// chunk events followed by exactly one terminal event (done or error).
// The exchange is persisted with whatever text reached the client,
// including a partial reply cut off by a mid-stream failure.
func (s *ChatService) ChatStream(ctx context.Context, ownerID string, req models.ChatRequest, emit func(ev models.StreamEvent) error) {
	sessionID, rc := s.buildContext(ctx, ownerID, req)

	var emitErr error
	ans, genErr := s.generator.AnswerStream(ctx, rc, func(text string) {
		if emitErr != nil {
			return
		}
		emitErr = emit(models.StreamEvent{Type: models.StreamEventChunk, Text: text, SessionID: sessionID})
	})

	if ans.Text != "" {
		s.save(ctx, ownerID, sessionID, req.Message, ans, rc.Passages)
	}

	if emitErr != nil {
		// Client went away; nothing left to frame.
		logger.Warn("chat stream client write failed", "session_id", sessionID, "error", emitErr)
		return
	}
	if genErr != nil {
		_ = emit(models.StreamEvent{
			Type:      models.StreamEventError,
			SessionID: sessionID,
			Error:     publicStreamError(genErr),
		})
		return
	}
	_ = emit(models.StreamEvent{
		Type:      models.StreamEventDone,
		SessionID: sessionID,
		Sources:   rc.Passages,
	})
}

// History returns the owner's messages for one session, oldest first.
func (s *ChatService) History(ctx context.Context, ownerID, sessionID string) (*models.SessionHistory, error) {
	msgs, err := s.messages.History(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	h := &models.SessionHistory{SessionID: sessionID, Messages: msgs}
	if len(msgs) > 0 {
		h.CreatedAt = msgs[0].Timestamp
		h.UpdatedAt = msgs[len(msgs)-1].Timestamp
	}
	return h, nil
}

func (s *ChatService) save(ctx context.Context, ownerID, sessionID, message string, ans Answer, sources []models.SearchResult) {
	msg := &models.ChatMessage{
		OwnerID:   ownerID,
		SessionID: sessionID,
		Message:   message,
		Reply:     ans.Text,
		Sources:   sources,
		Model:     ans.Model,
		TokenCost: ans.TokensUsed,
		Timestamp: time.Now(),
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		// The answer already reached the client; losing history is not
		// worth failing the exchange.
		logger.Error("save chat message failed", "session_id", sessionID, "error", err)
	}
}

// publicStreamError maps internal failures to messages safe to put on
// the wire.
func publicStreamError(err error) string {
	switch {
	case errors.Is(err, ErrGeneratorUnavailable):
		return "generation service temporarily unavailable"
	case errors.Is(err, ErrAuth):
		return "upstream authentication failed"
	case IsCallerError(err):
		return err.Error()
	default:
		return "generation failed"
	}
}

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
)

// MessageStore persists chat exchanges in the chat_messages collection.
type MessageStore struct {
	collection *mongo.Collection
}

var _ services.MessageStore = (*MessageStore)(nil)

func NewMessageStore(client *mongo.Client, cfg *config.Config) *MessageStore {
	return &MessageStore{
		collection: client.Database(cfg.DBName).Collection("chat_messages"),
	}
}

func (s *MessageStore) Save(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	_, err := s.collection.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *MessageStore) History(ctx context.Context, ownerID, sessionID string) ([]models.ChatMessage, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{"owner_id": ownerID, "session_id": sessionID},
		options.Find().SetSort(bson.M{"timestamp": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]models.ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

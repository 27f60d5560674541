package store

import (
	"context"
	"errors"
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

// DocumentStore persists KnowledgeDocument rows in the
// knowledge_documents collection. Reads are owner-scoped; the status
// transitions are internal and keyed by id alone because ownership was
// already checked by the caller.
type DocumentStore struct {
	collection *mongo.Collection
}

var _ services.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(client *mongo.Client, cfg *config.Config) *DocumentStore {
	return &DocumentStore{
		collection: client.Database(cfg.DBName).Collection("knowledge_documents"),
	}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.KnowledgeDocument) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusUploaded
	}

	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id, ownerID string) (*models.KnowledgeDocument, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", services.ErrDocumentNotFound, id)
	}

	var doc models.KnowledgeDocument
	err = s.collection.FindOne(ctx, bson.M{"_id": objID, "owner_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context, ownerID string, limit, offset int) ([]models.KnowledgeDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetProjection(bson.M{"content": 0, "compressed_content": 0})

	cursor, err := s.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]models.KnowledgeDocument, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id, ownerID string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", services.ErrDocumentNotFound, id)
	}

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": objID, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("delete documents by owner: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *DocumentStore) Exists(ctx context.Context, id string) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": objID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count document: %w", err)
	}
	return count > 0, nil
}

func (s *DocumentStore) MarkProcessing(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, bson.M{
		"status":           models.StatusProcessing,
		"is_processed":     false,
		"processing_error": "",
	})
}

func (s *DocumentStore) MarkProcessed(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, bson.M{
		"status":           models.StatusProcessed,
		"is_processed":     true,
		"vector_id":        id,
		"processing_error": "",
	})
}

func (s *DocumentStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.updateStatus(ctx, id, bson.M{
		"status":           models.StatusFailed,
		"is_processed":     false,
		"processing_error": reason,
	})
}

func (s *DocumentStore) updateStatus(ctx context.Context, id string, fields bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", services.ErrDocumentNotFound, id)
	}

	fields["updated_at"] = time.Now()
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

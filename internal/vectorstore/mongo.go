package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/models"
	"knowledge-base-platform/services"
)

// MongoVectorIndex stores embedded chunks in a MongoDB collection.
// With Atlas vector search enabled, queries run through $vectorSearch;
// otherwise similarity is computed over the owner's records directly.
// Every read, write and delete is scoped by owner or document prefix.
type MongoVectorIndex struct {
	collection *mongo.Collection
	indexName  string
	dimensions int
	atlas      bool
	timeout    time.Duration
}

var _ services.VectorIndex = (*MongoVectorIndex)(nil)

// NewMongoVectorIndex creates the index client. dimensions must be the
// embedding model's dimension; EnsureSchema declares it on the search
// index so a model/schema mismatch fails at startup, not at insert.
func NewMongoVectorIndex(client *mongo.Client, cfg *config.Config, dimensions int) *MongoVectorIndex {
	return &MongoVectorIndex{
		collection: client.Database(cfg.DBName).Collection(cfg.VectorCollection),
		indexName:  cfg.VectorIndexName,
		dimensions: dimensions,
		atlas:      cfg.AtlasVectorEnabled,
		timeout:    time.Duration(cfg.VectorSearchTimeout) * time.Second,
	}
}

// EnsureSchema creates the collection indexes and, when Atlas vector
// search is enabled, the vector search index. Idempotent: an existing
// schema is left untouched.
func (m *MongoVectorIndex) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "doc_id", Value: 1}}},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: create indexes: %v", services.ErrIndexUnavailable, err)
	}

	if !m.atlas {
		return nil
	}

	definition := bson.M{
		"fields": bson.A{
			bson.M{
				"type":          "vector",
				"path":          "vector",
				"numDimensions": m.dimensions,
				"similarity":    "euclidean",
			},
			bson.M{"type": "filter", "path": "owner_id"},
		},
	}
	_, err := m.collection.SearchIndexes().CreateOne(ctx, mongo.SearchIndexModel{
		Definition: definition,
		Options:    options.SearchIndexes().SetName(m.indexName).SetType("vectorSearch"),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("%w: create search index: %v", services.ErrIndexUnavailable, err)
	}
	return nil
}

// Upsert inserts or replaces one record keyed by its composite id.
func (m *MongoVectorIndex) Upsert(ctx context.Context, rec models.VectorRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: vector record id", services.ErrEmptyInput)
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: vector record embedding", services.ErrEmptyInput)
	}
	if rec.OwnerID == "" {
		return fmt.Errorf("%w: vector record owner", services.ErrEmptyInput)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": rec.ID},
		bson.M{"$set": rec},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", services.ErrIndexUnavailable, rec.ID, err)
	}
	return nil
}

// Search returns at most topK of the owner's records scored in [0,1],
// highest first, filtered to score >= threshold. Connectivity failure
// is ErrIndexUnavailable, never an empty result.
func (m *MongoVectorIndex) Search(ctx context.Context, embedding []float32, ownerID string, topK int, threshold float64) ([]models.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding", services.ErrEmptyInput)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id", services.ErrEmptyInput)
	}
	if topK <= 0 {
		topK = 5
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if m.atlas {
		return m.searchAtlas(ctx, embedding, ownerID, topK, threshold)
	}
	return m.searchScan(ctx, embedding, ownerID, topK, threshold)
}

func (m *MongoVectorIndex) searchAtlas(ctx context.Context, embedding []float32, ownerID string, topK int, threshold float64) ([]models.SearchResult, error) {
	queryVector := make(bson.A, len(embedding))
	for i, v := range embedding {
		queryVector[i] = v
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         m.indexName,
			"path":          "vector",
			"queryVector":   queryVector,
			"numCandidates": topK * 10,
			"limit":         topK,
			"filter":        bson.M{"owner_id": ownerID},
		}}},
		{{Key: "$project", Value: bson.M{
			"title":   1,
			"content": 1,
			"source":  1,
			"score":   bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", services.ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var results []models.SearchResult
	for cursor.Next(ctx) {
		var row struct {
			ID      string  `bson:"_id"`
			Title   string  `bson:"title"`
			Content string  `bson:"content"`
			Source  string  `bson:"source"`
			Score   float64 `bson:"score"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		score := ScoreFromAtlasEuclidean(row.Score)
		if score < threshold {
			continue
		}
		results = append(results, models.SearchResult{
			ID:      row.ID,
			Title:   row.Title,
			Content: row.Content,
			Source:  row.Source,
			Score:   score,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: vector search cursor: %v", services.ErrIndexUnavailable, err)
	}
	return results, nil
}

// searchScan is the non-Atlas path: load the owner's records and rank
// by L2 distance in process. Fine for single-tenant volumes; Atlas
// takes over at scale.
func (m *MongoVectorIndex) searchScan(ctx context.Context, embedding []float32, ownerID string, topK int, threshold float64) ([]models.SearchResult, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", services.ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var results []models.SearchResult
	for cursor.Next(ctx) {
		var rec models.VectorRecord
		if err := cursor.Decode(&rec); err != nil {
			continue
		}
		score := ScoreFromL2(L2Distance(embedding, rec.Vector))
		if score < threshold {
			continue
		}
		results = append(results, models.SearchResult{
			ID:      rec.ID,
			Title:   rec.Title,
			Content: rec.Content,
			Source:  rec.Source,
			Score:   score,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan cursor: %v", services.ErrIndexUnavailable, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByDocument removes every record belonging to the document.
// Chunk-level deletion is not exposed: chunk boundaries are an
// indexing detail, the document prefix is the stable unit.
func (m *MongoVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id", services.ErrEmptyInput)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.collection.DeleteMany(ctx, bson.M{"doc_id": documentID})
	if err != nil {
		return fmt.Errorf("%w: delete by document %s: %v", services.ErrIndexUnavailable, documentID, err)
	}
	logger.Debug("deleted vector records", "document_id", documentID, "count", res.DeletedCount)
	return nil
}

// DeleteByOwner removes every record belonging to the tenant.
func (m *MongoVectorIndex) DeleteByOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("%w: owner id", services.ErrEmptyInput)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.collection.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("%w: delete by owner: %v", services.ErrIndexUnavailable, err)
	}
	return nil
}

// DistinctDocumentIDs lists every document prefix present in the index.
func (m *MongoVectorIndex) DistinctDocumentIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.collection.Distinct(ctx, "doc_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: distinct doc ids: %v", services.ErrIndexUnavailable, err)
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "IndexAlreadyExists") || strings.Contains(msg, "Duplicate")
}

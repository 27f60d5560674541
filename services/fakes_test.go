package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"knowledge-base-platform/models"
)

// In-memory fakes for the driven ports. Shared across the package
// tests.

type fakeEmbedder struct {
	mu         sync.Mutex
	dim        int
	embedErr   error
	batchErr   error
	batchCalls int
	// shortBy trims the returned batch to simulate a truncating upstream.
	shortBy int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dim: 4}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, f.dim)
	for i, r := range text {
		v[i%f.dim] += float32(r)
	}
	return v
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectorFor(t))
	}
	if f.shortBy > 0 && len(out) >= f.shortBy {
		out = out[:len(out)-f.shortBy]
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dim }

type fakeVectorIndex struct {
	mu        sync.Mutex
	records   map[string]models.VectorRecord
	upsertErr error
	deleteErr error
	searchErr error
	results   []models.SearchResult
	deleted   []string
	// captured Search arguments
	lastOwner     string
	lastTopK      int
	lastThreshold float64
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{records: make(map[string]models.VectorRecord)}
}

func (f *fakeVectorIndex) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeVectorIndex) Upsert(ctx context.Context, rec models.VectorRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, embedding []float32, ownerID string, topK int, threshold float64) ([]models.SearchResult, error) {
	f.mu.Lock()
	f.lastOwner, f.lastTopK, f.lastThreshold = ownerID, topK, threshold
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []models.SearchResult
	for _, r := range f.results {
		if r.Score >= threshold {
			out = append(out, r)
		}
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, rec := range f.records {
		if rec.DocID == documentID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorIndex) DeleteByOwner(ctx context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.records {
		if rec.OwnerID == ownerID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorIndex) DistinctDocumentIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range f.records {
		if !seen[rec.DocID] {
			seen[rec.DocID] = true
			ids = append(ids, rec.DocID)
		}
	}
	return ids, nil
}

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*models.KnowledgeDocument
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*models.KnowledgeDocument)}
}

func (f *fakeDocumentStore) put(doc *models.KnowledgeDocument) *models.KnowledgeDocument {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.Status == "" {
		doc.Status = models.StatusUploaded
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID.Hex()] = doc
	return doc
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *models.KnowledgeDocument) error {
	f.put(doc)
	return nil
}

func (f *fakeDocumentStore) Get(ctx context.Context, id, ownerID string) (*models.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentStore) List(ctx context.Context, ownerID string, limit, offset int) ([]models.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KnowledgeDocument
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, doc := range f.docs {
		if doc.OwnerID == ownerID {
			delete(f.docs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeDocumentStore) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok, nil
}

func (f *fakeDocumentStore) status(id string) (string, bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return "", false, ""
	}
	return doc.Status, doc.IsProcessed, doc.ProcessingError
}

func (f *fakeDocumentStore) MarkProcessing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = models.StatusProcessing
	return nil
}

func (f *fakeDocumentStore) MarkProcessed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = models.StatusProcessed
	doc.IsProcessed = true
	doc.VectorID = id
	doc.ProcessingError = ""
	return nil
}

func (f *fakeDocumentStore) MarkFailed(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = models.StatusFailed
	doc.IsProcessed = false
	doc.ProcessingError = reason
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	saved    []models.ChatMessage
	saveErr  error
	messages []models.ChatMessage
}

func (f *fakeMessageStore) Save(ctx context.Context, msg *models.ChatMessage) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeMessageStore) History(ctx context.Context, ownerID, sessionID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for _, m := range f.messages {
		if m.OwnerID == ownerID && m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeGenerator scripts a stream of chunks and an optional trailing
// error.
type fakeGenerator struct {
	chunks    []string
	streamErr error
	answerErr error
	model     string
}

func (f *fakeGenerator) Answer(ctx context.Context, rc models.RAGContext) (Answer, error) {
	if f.answerErr != nil {
		return Answer{}, f.answerErr
	}
	var text string
	for _, ch := range f.chunks {
		text += ch
	}
	return Answer{Text: text, Model: f.model, TokensUsed: len(text) / 4}, nil
}

func (f *fakeGenerator) AnswerStream(ctx context.Context, rc models.RAGContext, onChunk func(text string)) (Answer, error) {
	var text string
	for _, ch := range f.chunks {
		onChunk(ch)
		text += ch
	}
	return Answer{Text: text, Model: f.model, TokensUsed: len(text) / 4}, f.streamErr
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (f *fakeQueue) EnqueueIndexDocument(ctx context.Context, documentID, ownerID string, reprocess bool) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, fmt.Sprintf("%s/%v", documentID, reprocess))
	return nil
}

var errUpstream = errors.New("upstream unavailable")

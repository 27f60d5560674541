package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"knowledge-base-platform/models"
)

func newTestIndexer(emb *fakeEmbedder, idx *fakeVectorIndex, docs *fakeDocumentStore) *Indexer {
	return NewIndexer(NewChunker(100, 20), emb, idx, docs, nil)
}

func seedDocument(docs *fakeDocumentStore, owner, content string) *models.KnowledgeDocument {
	return docs.put(&models.KnowledgeDocument{
		OwnerID: owner,
		Title:   "Test Document",
		Content: content,
	})
}

func TestIndexSuccess(t *testing.T) {
	emb := newFakeEmbedder()
	idx := newFakeVectorIndex()
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(30))

	if err := newTestIndexer(emb, idx, docs).Index(context.Background(), doc); err != nil {
		t.Fatalf("Index: %v", err)
	}

	status, processed, reason := docs.status(doc.ID.Hex())
	if status != models.StatusProcessed || !processed {
		t.Fatalf("want processed=true status=processed, got %v %q", processed, status)
	}
	if reason != "" {
		t.Fatalf("unexpected failure reason %q", reason)
	}
	if emb.batchCalls != 1 {
		t.Fatalf("want one batch embedding call, got %d", emb.batchCalls)
	}
	if len(idx.records) == 0 {
		t.Fatal("no vector records upserted")
	}
	for id, rec := range idx.records {
		if rec.DocID != doc.ID.Hex() || rec.OwnerID != "owner-1" {
			t.Fatalf("record %s has wrong scoping: doc=%s owner=%s", id, rec.DocID, rec.OwnerID)
		}
		if !strings.HasPrefix(id, doc.ID.Hex()+"_") {
			t.Fatalf("record key %s not derived from document id", id)
		}
	}
	// Every chunk index is present exactly once.
	for i := 0; i < len(idx.records); i++ {
		if _, ok := idx.records[models.VectorRecordID(doc.ID.Hex(), i)]; !ok {
			t.Fatalf("missing record for chunk %d", i)
		}
	}
}

func TestIndexEmptyContentFails(t *testing.T) {
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", "   ")

	err := newTestIndexer(newFakeEmbedder(), newFakeVectorIndex(), docs).Index(context.Background(), doc)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("want ErrEmptyContent, got %v", err)
	}
	status, _, reason := docs.status(doc.ID.Hex())
	if status != models.StatusFailed || reason == "" {
		t.Fatalf("want failed status with reason, got %q %q", status, reason)
	}
}

func TestIndexEmbeddingFailureKeepsRow(t *testing.T) {
	emb := newFakeEmbedder()
	emb.batchErr = errUpstream
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(10))

	err := newTestIndexer(emb, newFakeVectorIndex(), docs).Index(context.Background(), doc)
	if !errors.Is(err, errUpstream) {
		t.Fatalf("want upstream error, got %v", err)
	}

	status, processed, reason := docs.status(doc.ID.Hex())
	if status != models.StatusFailed || processed {
		t.Fatalf("want failed/unprocessed, got %q processed=%v", status, processed)
	}
	if !strings.Contains(reason, "upstream") {
		t.Fatalf("failure reason not recorded: %q", reason)
	}
	if ok, _ := docs.Exists(context.Background(), doc.ID.Hex()); !ok {
		t.Fatal("row must survive an indexing failure")
	}
}

func TestIndexEmbeddingCountMismatch(t *testing.T) {
	emb := newFakeEmbedder()
	emb.shortBy = 1
	docs := newFakeDocumentStore()
	idx := newFakeVectorIndex()
	doc := seedDocument(docs, "owner-1", buildCorpus(30))

	err := newTestIndexer(emb, idx, docs).Index(context.Background(), doc)
	if !errors.Is(err, ErrEmbeddingCountMismatch) {
		t.Fatalf("want ErrEmbeddingCountMismatch, got %v", err)
	}
	if len(idx.records) != 0 {
		t.Fatalf("no records should be upserted on mismatch, got %d", len(idx.records))
	}
}

func TestIndexUpsertFailure(t *testing.T) {
	idx := newFakeVectorIndex()
	idx.upsertErr = fmt.Errorf("%w: down", ErrIndexUnavailable)
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(10))

	err := newTestIndexer(newFakeEmbedder(), idx, docs).Index(context.Background(), doc)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("want ErrIndexUnavailable, got %v", err)
	}
	status, _, _ := docs.status(doc.ID.Hex())
	if status != models.StatusFailed {
		t.Fatalf("want failed status, got %q", status)
	}
}

func TestReprocessReplacesRecords(t *testing.T) {
	emb := newFakeEmbedder()
	idx := newFakeVectorIndex()
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(30))
	ix := newTestIndexer(emb, idx, docs)

	if err := ix.Index(context.Background(), doc); err != nil {
		t.Fatalf("Index: %v", err)
	}
	firstCount := len(idx.records)

	got, err := ix.Reprocess(context.Background(), doc.ID.Hex(), "owner-1")
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if got.Status != models.StatusProcessed || !got.IsProcessed {
		t.Fatalf("want processed after reprocess, got %q", got.Status)
	}
	if len(idx.records) != firstCount {
		t.Fatalf("same content should produce the same record count: %d != %d", len(idx.records), firstCount)
	}
	if len(idx.deleted) == 0 || idx.deleted[0] != doc.ID.Hex() {
		t.Fatalf("reprocess must attempt the prior delete, got %v", idx.deleted)
	}
}

func TestReprocessDeleteFailureNotFatal(t *testing.T) {
	emb := newFakeEmbedder()
	idx := newFakeVectorIndex()
	idx.deleteErr = errUpstream
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(10))
	ix := newTestIndexer(emb, idx, docs)

	got, err := ix.Reprocess(context.Background(), doc.ID.Hex(), "owner-1")
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if got.Status != models.StatusProcessed {
		t.Fatalf("delete failure must not block reindexing, got %q", got.Status)
	}
}

func TestReprocessWrongOwner(t *testing.T) {
	docs := newFakeDocumentStore()
	doc := seedDocument(docs, "owner-1", buildCorpus(10))
	ix := newTestIndexer(newFakeEmbedder(), newFakeVectorIndex(), docs)

	if _, err := ix.Reprocess(context.Background(), doc.ID.Hex(), "owner-2"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("cross-owner reprocess must fail with not-found, got %v", err)
	}
}

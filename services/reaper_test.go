package services

import (
	"context"
	"testing"

	"knowledge-base-platform/models"
)

func TestSweepRemovesOrphans(t *testing.T) {
	docs := newFakeDocumentStore()
	idx := newFakeVectorIndex()

	live := seedDocument(docs, "owner-1", "kept")
	idx.records["live_0"] = models.VectorRecord{ID: "live_0", DocID: live.ID.Hex(), OwnerID: "owner-1"}
	idx.records["gone_0"] = models.VectorRecord{ID: "gone_0", DocID: "deadbeefdeadbeefdeadbeef", OwnerID: "owner-1"}
	idx.records["gone_1"] = models.VectorRecord{ID: "gone_1", DocID: "deadbeefdeadbeefdeadbeef", OwnerID: "owner-1"}

	reaped, err := NewOrphanReaper(idx, docs, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("want 1 orphaned document reaped, got %d", reaped)
	}
	if _, ok := idx.records["live_0"]; !ok {
		t.Fatal("live document's vectors must survive the sweep")
	}
	if _, ok := idx.records["gone_0"]; ok {
		t.Fatal("orphaned vectors must be deleted")
	}
}

func TestSweepEmptyIndex(t *testing.T) {
	reaped, err := NewOrphanReaper(newFakeVectorIndex(), newFakeDocumentStore(), nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("want 0 reaped, got %d", reaped)
	}
}

func TestSweepDeleteFailureContinues(t *testing.T) {
	docs := newFakeDocumentStore()
	idx := newFakeVectorIndex()
	idx.records["gone_0"] = models.VectorRecord{ID: "gone_0", DocID: "deadbeefdeadbeefdeadbeef"}
	idx.deleteErr = errUpstream

	reaped, err := NewOrphanReaper(idx, docs, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("per-document failures must not fail the sweep: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("failed delete must not count as reaped, got %d", reaped)
	}
}

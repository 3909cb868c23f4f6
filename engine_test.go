package stratum

import (
	"context"
	"testing"
	"time"
)

func TestEngineWriteBatchAndGet(t *testing.T) {
	e, err := NewLocalEngine(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	defer e.Close()

	epoch := e.NextEpoch()
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("a"), epoch), Value: NewPutValue([]byte("1"))},
		{FullKey: EncodeFullKey([]byte("b"), epoch), Value: NewPutValue([]byte("2"))},
	}
	if err := e.WriteBatch(items, epoch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	v, ok := e.Get([]byte("a"), AllEpochs())
	if !ok || string(v.Data) != "1" {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestEngineSyncPublishesAndNotifiesCompactor(t *testing.T) {
	e, err := NewLocalEngine(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	defer e.Close()

	epoch := e.NextEpoch()
	w := e.NewBatchWriter()
	w.Put([]byte("a"), []byte("1"))
	w.Put([]byte("b"), []byte("2"))
	if err := w.Commit(epoch); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	select {
	case <-e.CompactorSignal():
	default:
		t.Fatalf("expected a compactor notification after sync")
	}
}

func TestBatchWriterCommitRequiresNonEmptyBatch(t *testing.T) {
	e, err := NewLocalEngine(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	defer e.Close()

	w := e.NewBatchWriter()
	if err := w.Commit(1); err == nil {
		t.Fatalf("expected error committing an empty batch")
	}
}

func TestBatchWriterLastWriteWinsWithinBatch(t *testing.T) {
	e, err := NewLocalEngine(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	defer e.Close()

	w := e.NewBatchWriter()
	w.Put([]byte("a"), []byte("first"))
	w.Put([]byte("a"), []byte("second"))
	w.Delete([]byte("b"))
	w.Put([]byte("b"), []byte("restored"))

	if w.Len() != 2 {
		t.Fatalf("expected 2 distinct staged keys, got %d", w.Len())
	}

	epoch := e.NextEpoch()
	if err := w.Commit(epoch); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, ok := e.Get([]byte("a"), AllEpochs())
	if !ok || string(v.Data) != "second" {
		t.Fatalf("expected last write to win, got %v, %v", v, ok)
	}
	v, ok = e.Get([]byte("b"), AllEpochs())
	if !ok || string(v.Data) != "restored" {
		t.Fatalf("expected restored value for b, got %v, %v", v, ok)
	}
}

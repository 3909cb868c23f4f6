package stratum

import (
	"fmt"
	"sort"
	"sync"
)

// BatchWriter accumulates Put/Delete calls under one user key namespace and
// commits them as a single immutable memtable at a caller-chosen epoch,
// de-duplicating repeated keys last-write-wins. A mutex-guarded
// pending-entries map with an explicit Commit step keeps staging cheap and
// commit atomic.
type BatchWriter struct {
	engine *Engine

	mu      sync.Mutex
	pending map[string]Value
	order   []string
}

// NewBatchWriter returns a batch writer bound to engine.
func (e *Engine) NewBatchWriter() *BatchWriter {
	return &BatchWriter{engine: e, pending: make(map[string]Value)}
}

// Put stages a Put(value) for key, overriding any earlier staged write for
// the same key in this batch.
func (w *BatchWriter) Put(key, value []byte) {
	w.stage(key, NewPutValue(append([]byte(nil), value...)))
}

// Delete stages a tombstone for key.
func (w *BatchWriter) Delete(key []byte) {
	w.stage(key, NewDeleteValue())
}

func (w *BatchWriter) stage(key []byte, v Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := string(key)
	if _, exists := w.pending[k]; !exists {
		w.order = append(w.order, k)
	}
	w.pending[k] = v
}

// Len reports the number of distinct keys staged so far.
func (w *BatchWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Commit builds one immutable memtable out of every staged write, encoded
// at epoch, and hands it to the engine's uploader. It fails if the batch is
// empty. The writer is left empty and reusable afterward.
func (w *BatchWriter) Commit(epoch uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return fmt.Errorf("stratum: commit called on an empty batch")
	}

	items := make([]MemtableItem, 0, len(w.pending))
	for _, k := range w.order {
		items = append(items, MemtableItem{
			FullKey: EncodeFullKey([]byte(k), epoch),
			Value:   w.pending[k],
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return CompareFullKeys(items[i].FullKey, items[j].FullKey) < 0
	})

	if err := w.engine.WriteBatch(items, epoch); err != nil {
		return err
	}

	w.pending = make(map[string]Value)
	w.order = nil
	return nil
}

package stratum

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

type storeEntry struct {
	key   []byte
	value []byte
}

func storeEntryLess(a, b storeEntry) bool { return bytes.Compare(a.key, b.key) < 0 }

// MemoryStateStore is an in-memory StateStore backed by an ordered btree,
// guarded by a RWMutex in the same spirit as the pack's
// johnjansen-torua/internal/storage.MemoryStore — a mutex-guarded map
// returning defensive copies — generalized here to keep keys in sorted order
// so ScanPrefix can walk a contiguous range instead of filtering a full map.
type MemoryStateStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[storeEntry]
}

// NewMemoryStateStore returns an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{tree: btree.NewG[storeEntry](32, storeEntryLess)}
}

// ScanPrefix returns every (key, value) pair whose key starts with prefix, in
// ascending order, up to limit pairs if limit is non-nil. Returned keys
// retain the prefix; Keyspace.ScanStripPrefix strips it.
func (s *MemoryStateStore) ScanPrefix(ctx context.Context, prefix []byte, limit *int) ([]KVPair, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	upper := prefixUpperBound(prefix)
	var out []KVPair
	s.tree.AscendGreaterOrEqual(storeEntry{key: prefix}, func(e storeEntry) bool {
		if upper != nil && bytes.Compare(e.key, upper) >= 0 {
			return false
		}
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		out = append(out, KVPair{Key: append([]byte{}, e.key...), Value: append([]byte{}, e.value...)})
		return limit == nil || len(out) < *limit
	})
	return out, nil
}

// IngestBatch atomically applies writes: HasValue false deletes the key.
func (s *MemoryStateStore) IngestBatch(ctx context.Context, writes []Write) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if w.HasValue {
			s.tree.ReplaceOrInsert(storeEntry{key: append([]byte{}, w.Key...), value: append([]byte{}, w.Value...)})
		} else {
			s.tree.Delete(storeEntry{key: w.Key})
		}
	}
	return nil
}

// prefixUpperBound returns the lexicographically smallest key that is
// strictly greater than every key starting with prefix, or nil if prefix is
// all 0xff (no finite upper bound exists).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

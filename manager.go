package stratum

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/btree"
)

// EpochRange bounds a lookup or scan by epoch, e.g. "..=e" (UpToEpoch) or
// "..e" (BelowEpoch) or the unbounded AllEpochs.
type EpochRange struct {
	startUnbounded bool
	start          uint64
	endUnbounded   bool
	end            uint64
	endExclusive   bool
}

// AllEpochs matches every epoch.
func AllEpochs() EpochRange {
	return EpochRange{startUnbounded: true, endUnbounded: true}
}

// UpToEpoch matches every epoch ≤ e ("..=e").
func UpToEpoch(e uint64) EpochRange {
	return EpochRange{startUnbounded: true, endUnbounded: false, end: e}
}

// BelowEpoch matches every epoch < e ("..e").
func BelowEpoch(e uint64) EpochRange {
	return EpochRange{startUnbounded: true, endUnbounded: false, end: e, endExclusive: true}
}

// Contains reports whether epoch e falls within r.
func (r EpochRange) Contains(e uint64) bool {
	if !r.startUnbounded && e < r.start {
		return false
	}
	if !r.endUnbounded {
		if r.endExclusive {
			if e >= r.end {
				return false
			}
		} else if e > r.end {
			return false
		}
	}
	return true
}

type memEntry struct {
	endUserKey []byte
	table      *ImmutableMemtable
}

func memEntryLess(a, b memEntry) bool { return bytes.Compare(a.endUserKey, b.endUserKey) < 0 }

// MemtableManager is the thread-safe registry of immutable memtables grouped
// by epoch and by end-user-key. It dispatches every registered memtable to
// its uploader and serves gets/iters over an epoch range.
type MemtableManager struct {
	mu       sync.RWMutex
	epochs   []uint64 // sorted ascending
	buckets  map[uint64]*btree.BTreeG[memEntry]
	uploader *memtableUploader
}

// NewMemtableManager wires a fresh registry to a background uploader that
// publishes through objects/meta and pokes compactor on sync.
func NewMemtableManager(opts Options, objects ObjectStore, meta HummockMetaClient, compactor *CompactorChannel, blockCache *LRUCache) *MemtableManager {
	u := newMemtableUploader(opts, meta, objects, compactor, blockCache)
	go u.run()
	return &MemtableManager{
		buckets:  make(map[uint64]*btree.BTreeG[memEntry]),
		uploader: u,
	}
}

// WriteBatch builds an ImmutableMemtable from items, registers it under
// (epoch, end_user_key), and enqueues it to the uploader. It fails only if
// the batch itself is invalid or the uploader channel is closed.
func (m *MemtableManager) WriteBatch(items []MemtableItem, epoch uint64) error {
	table, err := NewImmutableMemtable(items, epoch)
	if err != nil {
		return err
	}

	m.mu.Lock()
	bucket, ok := m.buckets[epoch]
	if !ok {
		bucket = btree.NewG[memEntry](32, memEntryLess)
		m.buckets[epoch] = bucket
		m.insertEpochLocked(epoch)
	}
	bucket.ReplaceOrInsert(memEntry{endUserKey: table.EndUserKey(), table: table})
	m.mu.Unlock()

	return m.uploader.enqueueMemtable(table)
}

func (m *MemtableManager) insertEpochLocked(epoch uint64) {
	idx := sort.Search(len(m.epochs), func(i int) bool { return m.epochs[i] >= epoch })
	m.epochs = append(m.epochs, 0)
	copy(m.epochs[idx+1:], m.epochs[idx:])
	m.epochs[idx] = epoch
}

// Get scans registry entries whose epoch lies in r, newest epoch first.
// Within each epoch it locates the memtable whose user-key range would
// contain userKey and returns the first hit, tombstones included.
func (m *MemtableManager) Get(userKey []byte, r EpochRange) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.epochs) - 1; i >= 0; i-- {
		epoch := m.epochs[i]
		if !r.Contains(epoch) {
			continue
		}
		bucket := m.buckets[epoch]
		var found *ImmutableMemtable
		bucket.AscendGreaterOrEqual(memEntry{endUserKey: userKey}, func(e memEntry) bool {
			found = e.table
			return false
		})
		if found == nil {
			continue
		}
		if bytes.Compare(found.StartUserKey(), userKey) > 0 {
			continue
		}
		if v, ok := found.Get(userKey); ok {
			return v, true
		}
	}
	return Value{}, false
}

// Iters returns one forward cursor per memtable whose user-key range
// overlaps kr, across every epoch in er, ordered by epoch then by memtable
// start key. Merging across the returned cursors is a higher layer's job.
func (m *MemtableManager) Iters(kr KeyRange, er EpochRange) []*MemtableIterator {
	return m.collectIters(kr, er, false)
}

// ReverseIters is the backward-cursor counterpart of Iters.
func (m *MemtableManager) ReverseIters(kr KeyRange, er EpochRange) []*MemtableIterator {
	return m.collectIters(kr, er, true)
}

func (m *MemtableManager) collectIters(kr KeyRange, er EpochRange, reverse bool) []*MemtableIterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*MemtableIterator
	for _, epoch := range m.epochs {
		if !er.Contains(epoch) {
			continue
		}
		bucket := m.buckets[epoch]
		bucket.Ascend(func(e memEntry) bool {
			if kr.Overlaps(e.table.StartUserKey(), e.table.EndUserKey(), reverse) {
				if reverse {
					out = append(out, e.table.ReverseIter())
				} else {
					out = append(out, e.table.Iter())
				}
			}
			return true
		})
	}
	return out
}

// Sync sends a SYNC item to the uploader and awaits its completion, or ctx's
// cancellation, whichever comes first.
func (m *MemtableManager) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	if err := m.uploader.enqueueSync(done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteBefore inclusively purges every registry entry with epoch ≤ epoch.
// Callers must first establish that those memtables' SSTs are durably
// registered.
func (m *MemtableManager) DeleteBefore(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := sort.Search(len(m.epochs), func(i int) bool { return m.epochs[i] > epoch })
	for _, e := range m.epochs[:idx] {
		delete(m.buckets, e)
	}
	remaining := make([]uint64, len(m.epochs)-idx)
	copy(remaining, m.epochs[idx:])
	m.epochs = remaining
}

// Wait consumes the manager: it closes the uploader's queue, awaits its
// termination, and returns any deferred error.
func (m *MemtableManager) Wait() error {
	return m.uploader.closeAndWait()
}

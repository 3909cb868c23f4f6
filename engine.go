package stratum

import (
	"context"
	"sync/atomic"
)

// Engine wires together the pieces a caller actually touches: the memtable
// registry/uploader pair, the object store and meta client they publish
// through, and a plain StateStore for ManagedTopNState keyspaces.
type Engine struct {
	opts       Options
	objects    ObjectStore
	meta       HummockMetaClient
	compactor  *CompactorChannel
	blockCache *LRUCache
	manager    *MemtableManager
	store      StateStore

	nextEpoch uint64
}

// NewEngine wires an engine from explicit dependencies. blockCache may be
// nil to disable block warming on publish.
func NewEngine(opts Options, objects ObjectStore, meta HummockMetaClient, store StateStore, blockCache *LRUCache) *Engine {
	compactor := NewCompactorChannel(opts.compactorBuffer())
	manager := NewMemtableManager(opts, objects, meta, compactor, blockCache)
	return &Engine{
		opts:       opts,
		objects:    objects,
		meta:       meta,
		compactor:  compactor,
		blockCache: blockCache,
		manager:    manager,
		store:      store,
	}
}

// NewLocalEngine is the batteries-included constructor: an ObjectStore
// rooted at dir, an in-memory meta client, an in-memory StateStore, and a
// default-sized block cache.
func NewLocalEngine(dir string) (*Engine, error) {
	objects, err := NewLocalObjectStore(dir)
	if err != nil {
		return nil, err
	}
	return NewEngine(
		DefaultOptions("sst"),
		objects,
		NewInMemoryMetaClient(),
		NewMemoryStateStore(),
		NewLRUCache(DefaultBlockCacheBytes),
	), nil
}

// NextEpoch hands out a fresh, monotonically increasing epoch number for
// callers that don't derive epochs from an external barrier stream.
func (e *Engine) NextEpoch() uint64 {
	return atomic.AddUint64(&e.nextEpoch, 1)
}

// WriteBatch registers items as one immutable memtable at epoch and hands it
// to the background uploader.
func (e *Engine) WriteBatch(items []MemtableItem, epoch uint64) error {
	return e.manager.WriteBatch(items, epoch)
}

// Get looks up userKey across every epoch in r, newest first, returning a
// tombstone as found=true with an IsDelete value.
func (e *Engine) Get(userKey []byte, r EpochRange) (Value, bool) {
	return e.manager.Get(userKey, r)
}

// Sync flushes every pending memtable to SSTs and blocks until the meta
// client has durably registered them, or ctx is done.
func (e *Engine) Sync(ctx context.Context) error {
	return e.manager.Sync(ctx)
}

// DeleteBefore purges memtable registry entries at or below epoch. Callers
// must only do this once the corresponding SSTs are durably registered
// (i.e. after a Sync that covered them).
func (e *Engine) DeleteBefore(epoch uint64) {
	e.manager.DeleteBefore(epoch)
}

// CompactorSignal exposes the read side of the best-effort compaction
// notification channel.
func (e *Engine) CompactorSignal() <-chan struct{} {
	return e.compactor.C()
}

// Keyspace returns a Keyspace rooted at prefix over the engine's StateStore,
// for use by ManagedTopNState.
func (e *Engine) Keyspace(prefix []byte) Keyspace {
	return NewKeyspace(prefix, e.store)
}

// Close stops the background uploader and returns any error it accumulated.
func (e *Engine) Close() error {
	return e.manager.Wait()
}

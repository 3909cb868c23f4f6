package stratum

import (
	"context"
	"fmt"
	"log"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type uploaderItemKind int

const (
	itemMemtable uploaderItemKind = iota
	itemSync
)

type uploaderItem struct {
	kind  uploaderItemKind
	table *ImmutableMemtable
	done  chan error
}

// itemQueue is an unbounded single-consumer queue, the Go equivalent of the
// unbounded mpsc receiver the original uploader owns: pushes never block, and
// pop blocks only when the queue is genuinely empty.
type itemQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []uploaderItem
	closed bool
}

func newItemQueue() *itemQueue {
	q := &itemQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *itemQueue) push(it uploaderItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrChannelClosed
	}
	q.items = append(q.items, it)
	q.cond.Signal()
	return nil
}

func (q *itemQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// tryPop is the non-blocking branch of the event loop.
func (q *itemQueue) tryPop() (uploaderItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return uploaderItem{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// pop blocks until an item is available, or returns false once the queue is
// closed and drained — the "permanent disconnect" exit condition.
func (q *itemQueue) pop() (uploaderItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return uploaderItem{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// memtableUploader is the single consumer of the memtable queue: it batches
// memtables into a capacity-split SST builder, publishes tables to the
// metadata service, and pokes the compactor on sync. It runs as an
// item-driven non-blocking-then-blocking receive loop, the Go shape of an
// actor draining an unbounded channel.
type memtableUploader struct {
	queue *itemQueue

	pending        []*ImmutableMemtable
	maxUploadEpoch uint64

	opts       Options
	meta       HummockMetaClient
	objects    ObjectStore
	compactor  *CompactorChannel
	blockCache *LRUCache
	log        *log.Logger

	doneCh chan struct{}
	runErr error
}

func newMemtableUploader(opts Options, meta HummockMetaClient, objects ObjectStore, compactor *CompactorChannel, blockCache *LRUCache) *memtableUploader {
	return &memtableUploader{
		queue:      newItemQueue(),
		opts:       opts,
		meta:       meta,
		objects:    objects,
		compactor:  compactor,
		blockCache: blockCache,
		log:        opts.logger(),
		doneCh:     make(chan struct{}),
	}
}

func (u *memtableUploader) enqueueMemtable(t *ImmutableMemtable) error {
	return u.queue.push(uploaderItem{kind: itemMemtable, table: t})
}

func (u *memtableUploader) enqueueSync(done chan error) error {
	return u.queue.push(uploaderItem{kind: itemSync, done: done})
}

func (u *memtableUploader) closeAndWait() error {
	u.queue.close()
	<-u.doneCh
	return u.runErr
}

// run is the event loop: non-blocking receive first, blocking receive if
// that comes up empty, FIFO processing, clean exit on permanent disconnect.
// A sync error with a waiting caller goes to that caller and the loop goes
// on, with the pending memtables kept for the next sync; any other handler
// error aborts the loop and is surfaced via closeAndWait.
func (u *memtableUploader) run() {
	defer close(u.doneCh)
	for {
		item, ok := u.queue.tryPop()
		if !ok {
			item, ok = u.queue.pop()
			if !ok {
				return
			}
		}
		if err := u.handle(context.Background(), item); err != nil {
			u.runErr = err
			return
		}
	}
}

func (u *memtableUploader) handle(ctx context.Context, item uploaderItem) error {
	switch item.kind {
	case itemMemtable:
		if item.table.Epoch() > u.maxUploadEpoch {
			u.maxUploadEpoch = item.table.Epoch()
		}
		u.pending = append(u.pending, item.table)
		return nil
	case itemSync:
		err := u.sync(ctx)
		if item.done != nil {
			item.done <- err
			return nil
		}
		return err
	default:
		return nil
	}
}

// sync implements the §4.3 algorithm: sort pending memtables, feed every
// item through a CapacitySplitTableBuilder, publish the resulting tables,
// register them atomically at max_upload_epoch, and poke the compactor.
func (u *memtableUploader) sync(ctx context.Context) error {
	if len(u.pending) == 0 {
		return nil
	}

	sort.Slice(u.pending, func(i, j int) bool {
		return CompareFullKeys(u.pending[i].StartKey(), u.pending[j].StartKey()) < 0
	})

	builder := newBlockSplitTableBuilder(u.opts.tableTargetSize(), u.opts.tableBlockSize(), func(ctx context.Context) (uint64, error) {
		return u.meta.GetNewTableID(ctx)
	})

	for _, table := range u.pending {
		it := table.Iter()
		for it.Valid() {
			if err := builder.AddFullKey(ctx, it.Key(), it.Value(), true); err != nil {
				return fmt.Errorf("stratum: build sstable: %w", err)
			}
			it.Next()
		}
	}

	built, err := builder.Finish(ctx)
	if err != nil {
		return fmt.Errorf("stratum: finish sstable build: %w", err)
	}
	if len(built) == 0 {
		u.pending = nil
		return nil
	}

	infos := make([]SstableInfo, 0, len(built))
	for _, bt := range built {
		if err := u.publish(ctx, bt); err != nil {
			return err
		}
		infos = append(infos, SstableInfo{
			ID: bt.ID,
			KeyRange: KeyRange{
				Start: UserKeyOf(bt.SmallestKey),
				End:   UserKeyOf(bt.LargestKey),
			},
		})
	}

	if err := u.meta.AddTables(ctx, u.maxUploadEpoch, infos); err != nil {
		return fmt.Errorf("stratum: add_tables: %w", err)
	}

	u.compactor.Notify()
	u.pending = nil
	return nil
}

// publish uploads a built table's encoded bytes to object storage under
// options.remote_dir, warming the block cache as a side effect — the
// gen_remote_sstable helper of §6 (see objectstore.go for the durable
// write path).
func (u *memtableUploader) publish(ctx context.Context, bt builtTable) error {
	objectKey := path.Join(u.opts.RemoteDir, fmt.Sprintf("%d-%s.sst", bt.ID, uuid.NewString()))
	if err := u.objects.Put(ctx, objectKey, bt.Encoded); err != nil {
		return fmt.Errorf("stratum: upload sstable %d: %w", bt.ID, err)
	}
	if u.blockCache != nil {
		for i, block := range bt.Blocks {
			u.blockCache.Put(fmt.Sprintf("%d:%d", bt.ID, i), block)
		}
	}
	u.log.Printf("stratum: published sstable %d (%d blocks, %d bytes) to %s", bt.ID, len(bt.Blocks), len(bt.Encoded), objectKey)
	return nil
}

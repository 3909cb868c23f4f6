package stratum

import (
	"context"
	"sync"
	"sync/atomic"
)

// addTablesCall records one AddTables invocation, exposed for tests that
// assert uploader liveness (spec.md §8 invariant 10).
type addTablesCall struct {
	Epoch  uint64
	Tables []SstableInfo
}

// inMemoryMetaClient is a HummockMetaClient backed by an atomic id counter
// and a mutex-guarded registration log, in the style of the pack's
// johnjansen-torua shard registry (an in-memory authoritative record guarded
// by a single mutex, read back via defensive copies).
type inMemoryMetaClient struct {
	nextID uint64

	mu    sync.RWMutex
	calls []addTablesCall
}

// NewInMemoryMetaClient returns a meta client with no tables registered yet.
func NewInMemoryMetaClient() *inMemoryMetaClient {
	return &inMemoryMetaClient{}
}

// GetNewTableID mints a fresh table id, starting at 1.
func (c *inMemoryMetaClient) GetNewTableID(ctx context.Context) (uint64, error) {
	_ = ctx
	return atomic.AddUint64(&c.nextID, 1), nil
}

// AddTables atomically records tables against epoch.
func (c *inMemoryMetaClient) AddTables(ctx context.Context, epoch uint64, tables []SstableInfo) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]SstableInfo, len(tables))
	copy(cp, tables)
	c.calls = append(c.calls, addTablesCall{Epoch: epoch, Tables: cp})
	return nil
}

// Calls returns a defensive copy of every AddTables invocation observed so
// far, in call order.
func (c *inMemoryMetaClient) Calls() []addTablesCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]addTablesCall, len(c.calls))
	copy(out, c.calls)
	return out
}

package stratum

import (
	"bytes"
	"fmt"
	"sort"
)

// MemtableItem is a single (full_key, value) pair as produced by a writer's
// sorted batch.
type MemtableItem struct {
	FullKey FullKey
	Value   Value
}

// ImmutableMemtable is an epoch-tagged, sorted, shared-immutable vector of
// items. Once constructed its contents never change; the backing slice is
// shared by reference between the registry and the uploader, exactly like a
// plain Go slice aliases its backing array — no refcounting wrapper needed.
type ImmutableMemtable struct {
	items []MemtableItem
	epoch uint64
}

// NewImmutableMemtable validates and wraps a pre-sorted batch. items must be
// non-empty, strictly ascending by full key, and (by construction) share one
// epoch — epoch is recorded separately rather than re-derived per item.
func NewImmutableMemtable(items []MemtableItem, epoch uint64) (*ImmutableMemtable, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("stratum: cannot register an empty memtable")
	}
	for i := 1; i < len(items); i++ {
		if CompareFullKeys(items[i-1].FullKey, items[i].FullKey) >= 0 {
			return nil, fmt.Errorf("stratum: memtable items must be strictly ascending by full key")
		}
	}
	return &ImmutableMemtable{items: items, epoch: epoch}, nil
}

// Epoch returns the tag shared by every item.
func (m *ImmutableMemtable) Epoch() uint64 { return m.epoch }

// StartKey is the smallest full key in the memtable.
func (m *ImmutableMemtable) StartKey() FullKey { return m.items[0].FullKey }

// EndKey is the largest full key in the memtable.
func (m *ImmutableMemtable) EndKey() FullKey { return m.items[len(m.items)-1].FullKey }

// StartUserKey is the user-key projection of StartKey.
func (m *ImmutableMemtable) StartUserKey() []byte { return UserKeyOf(m.items[0].FullKey) }

// EndUserKey is the user-key projection of EndKey.
func (m *ImmutableMemtable) EndUserKey() []byte { return UserKeyOf(m.items[len(m.items)-1].FullKey) }

// Len reports the item count.
func (m *ImmutableMemtable) Len() int { return len(m.items) }

// Get binary-searches the user-key projection of the full keys. Since a
// memtable holds a single epoch, at most one entry per user key exists, so
// the first match is the only match.
func (m *ImmutableMemtable) Get(userKey []byte) (Value, bool) {
	idx := sort.Search(len(m.items), func(i int) bool {
		return bytes.Compare(UserKeyOf(m.items[i].FullKey), userKey) >= 0
	})
	if idx < len(m.items) && bytes.Equal(UserKeyOf(m.items[idx].FullKey), userKey) {
		return m.items[idx].Value, true
	}
	return Value{}, false
}

// Iter returns a restartable forward cursor in ascending full-key order.
func (m *ImmutableMemtable) Iter() *MemtableIterator {
	return &MemtableIterator{items: m.items}
}

// ReverseIter returns a restartable backward cursor in descending full-key
// order, indexing the same shared buffer as len-1-i.
func (m *ImmutableMemtable) ReverseIter() *MemtableIterator {
	return &MemtableIterator{items: m.items, reverse: true}
}

// MemtableIterator is a lazy cursor over an ImmutableMemtable's shared
// buffer. Multiple cursors, forward or reverse, may coexist independently.
type MemtableIterator struct {
	items   []MemtableItem
	idx     int
	reverse bool
}

func (it *MemtableIterator) slot() int {
	if it.reverse {
		return len(it.items) - 1 - it.idx
	}
	return it.idx
}

// Valid reports whether the cursor currently points at an item.
func (it *MemtableIterator) Valid() bool { return it.idx >= 0 && it.idx < len(it.items) }

// Next advances the cursor. Must only be called while Valid.
func (it *MemtableIterator) Next() { it.idx++ }

// Key returns the full key at the current slot.
func (it *MemtableIterator) Key() FullKey { return it.items[it.slot()].FullKey }

// Value returns the value at the current slot.
func (it *MemtableIterator) Value() Value { return it.items[it.slot()].Value }

// Rewind resets the cursor to its starting position.
func (it *MemtableIterator) Rewind() { it.idx = 0 }

// Seek positions a forward cursor at the first slot whose full key is ≥ key,
// using binary search over the shared buffer. Reverse cursors do not support
// seek; Rewind instead.
func (it *MemtableIterator) Seek(key FullKey) {
	if it.reverse {
		it.idx = 0
		return
	}
	it.idx = sort.Search(len(it.items), func(i int) bool {
		return CompareFullKeys(it.items[i].FullKey, key) >= 0
	})
}

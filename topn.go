package stratum

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/btree"
	"github.com/oarkflow/convert"
)

// CellType is the column type of one schema position.
type CellType int

const (
	CellInt64 CellType = iota
	CellVarchar
)

// Row is a logical row: one value per schema position.
type Row struct {
	Cells []any
}

// RowCodec serializes/deserializes a Row's cells per the schema, and is the
// Row serializer contract of §4.4: a row is partitioned into schema.len()
// equal logical cells at the storage layer.
type RowCodec struct {
	Schema []CellType
}

// NewRowCodec builds a codec for schema.
func NewRowCodec(schema []CellType) RowCodec { return RowCodec{Schema: schema} }

// Len is the number of cells (and schema columns) per row.
func (c RowCodec) Len() int { return len(c.Schema) }

// SerializeCell encodes cell idx of a row for storage.
func (c RowCodec) SerializeCell(idx int, v any) ([]byte, error) {
	switch c.Schema[idx] {
	case CellInt64:
		n, err := cellInt64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n))
		return buf, nil
	case CellVarchar:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("stratum: cell %d is not a string", idx)
		}
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("stratum: unknown cell type %d", c.Schema[idx])
	}
}

// DeserializeCell decodes cell idx of a row read back from storage.
func (c RowCodec) DeserializeCell(idx int, raw []byte) (any, error) {
	switch c.Schema[idx] {
	case CellInt64:
		if len(raw) != 8 {
			return nil, &DataIntegrityError{Msg: fmt.Sprintf("int64 cell must be 8 bytes, got %d", len(raw))}
		}
		return int64(binary.BigEndian.Uint64(raw)), nil
	case CellVarchar:
		return string(raw), nil
	default:
		return nil, fmt.Errorf("stratum: unknown cell type %d", c.Schema[idx])
	}
}

// Deserialize reassembles a Row from its per-cell bytes, in schema order.
func (c RowCodec) Deserialize(cells [][]byte) (Row, error) {
	if len(cells) != len(c.Schema) {
		return Row{}, &DataIntegrityError{Msg: fmt.Sprintf("expected %d cells, got %d", len(c.Schema), len(cells))}
	}
	out := make([]any, len(cells))
	for i, raw := range cells {
		v, err := c.DeserializeCell(i, raw)
		if err != nil {
			return Row{}, err
		}
		out[i] = v
	}
	return Row{Cells: out}, nil
}

// cellInt64 coerces arbitrary caller-supplied cell values to int64, reaching
// for the pack's oarkflow/convert numeric coercion when the value isn't
// already an integer type.
func cellInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		f, ok := convert.ToFloat64(v)
		if !ok {
			return 0, fmt.Errorf("stratum: cell value %v not convertible to int64", v)
		}
		return int64(f), nil
	}
}

func rowsEqual(a, b Row) bool {
	if len(a.Cells) != len(b.Cells) {
		return false
	}
	for i := range a.Cells {
		if fmt.Sprint(a.Cells[i]) != fmt.Sprint(b.Cells[i]) {
			return false
		}
	}
	return true
}

type topNEntry struct {
	key string
	row Row
}

func topNEntryLess(a, b topNEntry) bool { return a.key < b.key }

type flushEntry struct {
	key    string
	status FlushStatus[Row]
}

func flushEntryLess(a, b flushEntry) bool { return a.key < b.key }

// ManagedTopNState is the C6 bounded ordered cache over a keyspace: insert,
// delete, top-peek, top-pop, checkpoint flush, refill-from-store. Designed
// for single-writer use per instance — no internal locking (§5).
type ManagedTopNState struct {
	topN        *btree.BTreeG[topNEntry]
	flushBuffer *btree.BTreeG[flushEntry]
	totalCount  int
	topNCount   *int
	keyspace    Keyspace
	codec       RowCodec
}

// NewManagedTopNState builds a state over keyspace/codec. topNCount nil means
// an unbounded cache; totalCount seeds the authoritative row count (used when
// recreating a state whose rows already exist in the store, as in scenario S1).
func NewManagedTopNState(topNCount *int, totalCount int, keyspace Keyspace, codec RowCodec) *ManagedTopNState {
	return &ManagedTopNState{
		topN:        btree.NewG[topNEntry](32, topNEntryLess),
		flushBuffer: btree.NewG[flushEntry](32, flushEntryLess),
		totalCount:  totalCount,
		topNCount:   topNCount,
		keyspace:    keyspace,
		codec:       codec,
	}
}

// TotalCount is the authoritative number of distinct logical rows in cache ∪
// persisted.
func (s *ManagedTopNState) TotalCount() int { return s.totalCount }

// IsDirty reports whether the flush buffer holds pending changes.
func (s *ManagedTopNState) IsDirty() bool { return s.flushBuffer.Len() > 0 }

// RetainTopN discards the last (logically least-interesting, since keys are
// pre-inverted by the caller's serializer) cached entry while the cache
// exceeds topNCount.
func (s *ManagedTopNState) RetainTopN() {
	if s.topNCount == nil {
		return
	}
	for s.topN.Len() > *s.topNCount {
		s.topN.DeleteMax()
	}
}

// TopElement returns top_n.first_key_value() when total_count > 0.
func (s *ManagedTopNState) TopElement() (string, Row, bool) {
	if s.totalCount == 0 {
		return "", Row{}, false
	}
	e, ok := s.topN.Min()
	if !ok {
		return "", Row{}, false
	}
	return e.key, e.row, true
}

// Insert writes to top_n, folds Insert(row) into flush_buffer, and
// increments total_count. Never evicts.
func (s *ManagedTopNState) Insert(key string, row Row) {
	s.topN.ReplaceOrInsert(topNEntry{key: key, row: row})

	cur, ok := s.flushBuffer.Get(flushEntry{key: key})
	var curStatus FlushStatus[Row]
	if ok {
		curStatus = cur.status
	}
	next := FoldInsert(curStatus, ok, row)
	s.flushBuffer.ReplaceOrInsert(flushEntry{key: key, status: next})

	s.totalCount++
}

// delete removes key from top_n (it must be present), folds Delete into
// flush_buffer, decrements total_count, and — if the cache just emptied
// while rows remain — repopulates from the store and re-caps.
func (s *ManagedTopNState) delete(ctx context.Context, key string) (Row, error) {
	entry, ok := s.topN.Delete(topNEntry{key: key})
	if !ok {
		return Row{}, &UsageError{Msg: fmt.Sprintf("delete: key %q not present in cache", key)}
	}

	cur, has := s.flushBuffer.Get(flushEntry{key: key})
	var curStatus FlushStatus[Row]
	if has {
		curStatus = cur.status
	}
	next := FoldDelete(curStatus, has)
	s.flushBuffer.ReplaceOrInsert(flushEntry{key: key, status: next})

	s.totalCount--

	if s.topN.Len() == 0 && s.totalCount > 0 {
		if err := s.ScanAndMerge(ctx); err != nil {
			return entry.row, err
		}
		s.RetainTopN()
	}
	return entry.row, nil
}

// PopTopElement peeks the first cached key, deletes it (refilling from the
// store if that drains the cache), and returns it.
func (s *ManagedTopNState) PopTopElement(ctx context.Context) (string, Row, bool, error) {
	if s.totalCount == 0 {
		return "", Row{}, false, nil
	}
	min, ok := s.topN.Min()
	if !ok {
		return "", Row{}, false, &UsageError{Msg: "pop_top_element: cache empty but total_count > 0"}
	}
	row, err := s.delete(ctx, min.key)
	if err != nil {
		return "", Row{}, false, err
	}
	return min.key, row, true, nil
}

// scanFromStorage scans up to limit rows (limit*schema.len() cells) from the
// keyspace, reassembling contiguous cell groups into rows in storage order.
func (s *ManagedTopNState) scanFromStorage(ctx context.Context, limit *int) ([]topNEntry, error) {
	var cellLimit *int
	if limit != nil {
		n := *limit * s.codec.Len()
		cellLimit = &n
	}
	pairs, err := s.keyspace.ScanStripPrefix(ctx, cellLimit)
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	n := s.codec.Len()
	if len(pairs)%n != 0 {
		return nil, &DataIntegrityError{Msg: fmt.Sprintf("storage returned %d cells, not a multiple of schema length %d", len(pairs), n)}
	}

	out := make([]topNEntry, 0, len(pairs)/n)
	for i := 0; i < len(pairs); i += n {
		group := pairs[i : i+n]
		cells := make([][]byte, n)
		for j, p := range group {
			cells[j] = p.Value
		}
		row, err := s.codec.Deserialize(cells)
		if err != nil {
			return nil, err
		}
		pk := group[0].Key[:len(group[0].Key)-cellIndexSize]
		out = append(out, topNEntry{key: string(pk), row: row})
	}
	return out, nil
}

// ScanAndMerge assumes a dirty buffer. It scans every row from the store
// (unbounded) and walks the sorted flush_buffer in parallel with a peekable
// cursor: buffer keys less than the current storage key are skipped;
// present-and-equal buffer entries win (Delete drops the row, Insert /
// DeleteInsert override it); storage keys with no matching buffer entry pass
// through untouched (§4.4).
func (s *ManagedTopNState) ScanAndMerge(ctx context.Context) error {
	rows, err := s.scanFromStorage(ctx, nil)
	if err != nil {
		return err
	}

	var bufKeys []flushEntry
	s.flushBuffer.Ascend(func(e flushEntry) bool {
		bufKeys = append(bufKeys, e)
		return true
	})

	bi := 0
	for _, r := range rows {
		for bi < len(bufKeys) && bufKeys[bi].key < r.key {
			bi++
		}
		switch {
		case bi >= len(bufKeys):
			s.topN.ReplaceOrInsert(topNEntry{key: r.key, row: r.row})
		case bufKeys[bi].key == r.key:
			if v, ok := bufKeys[bi].status.IntoOption(); ok {
				s.topN.ReplaceOrInsert(topNEntry{key: r.key, row: v})
			}
		default:
			s.topN.ReplaceOrInsert(topNEntry{key: r.key, row: r.row})
		}
	}
	return nil
}

// FillInCache requires a clean flush buffer. It scans up to
// top_n_count*schema.len() cells, reassembles rows, and inserts them into
// the cache; a duplicate key must produce an identical row. Ends with
// RetainTopN.
func (s *ManagedTopNState) FillInCache(ctx context.Context) error {
	if s.IsDirty() {
		return &UsageError{Msg: "fill_in_cache requires a clean flush buffer"}
	}
	rows, err := s.scanFromStorage(ctx, s.topNCount)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if existing, ok := s.topN.Get(topNEntry{key: r.key}); ok {
			if !rowsEqual(existing.row, r.row) {
				return &DataIntegrityError{Msg: fmt.Sprintf("duplicate key %q with divergent rows", r.key)}
			}
		}
		s.topN.ReplaceOrInsert(topNEntry{key: r.key, row: r.row})
	}
	s.RetainTopN()
	return nil
}

// Flush drains the flush buffer into one batched ingest: for each (pk,
// status) and each cell index, it writes the serialized cell (Insert /
// DeleteInsert) or a tombstone (Delete). It ends with RetainTopN. If the
// buffer is clean, it only retains.
func (s *ManagedTopNState) Flush(ctx context.Context) error {
	if !s.IsDirty() {
		s.RetainTopN()
		return nil
	}

	var writes []Write
	var ferr error
	s.flushBuffer.Ascend(func(e flushEntry) bool {
		row, hasRow := e.status.IntoOption()
		for cellIdx := 0; cellIdx < s.codec.Len(); cellIdx++ {
			key := s.keyspace.PrefixedKey(CellKey([]byte(e.key), uint32(cellIdx)))
			if !hasRow {
				writes = append(writes, Write{Key: key, HasValue: false})
				continue
			}
			cellBytes, err := s.codec.SerializeCell(cellIdx, row.Cells[cellIdx])
			if err != nil {
				ferr = err
				return false
			}
			writes = append(writes, Write{Key: key, Value: cellBytes, HasValue: true})
		}
		return true
	})
	if ferr != nil {
		return ferr
	}

	if err := s.keyspace.StateStore().IngestBatch(ctx, writes); err != nil {
		return &StoreError{Err: err}
	}

	s.flushBuffer = btree.NewG[flushEntry](32, flushEntryLess)
	s.RetainTopN()
	return nil
}

package stratum

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/compress/s2"
)

// builtTable is a finished SST object: its minted id, the full-key span it
// covers, the individual compressed+checksummed blocks, and the encoded byte
// stream ready for an ObjectStore.Put.
type builtTable struct {
	ID          uint64
	SmallestKey FullKey
	LargestKey  FullKey
	Blocks      [][]byte
	Encoded     []byte
}

// CapacitySplitTableBuilder is the C5 external contract: accepts ordered
// full-key/value pairs and emits a sequence of SST objects bounded in size,
// cutting only between two different user keys, and only before a key the
// caller has marked safe to split.
type CapacitySplitTableBuilder interface {
	AddFullKey(ctx context.Context, key FullKey, v Value, allowSplit bool) error
	Finish(ctx context.Context) ([]builtTable, error)
}

type tableIDMinter func(ctx context.Context) (uint64, error)

const tableMagic uint32 = 0x53545254 // "STRT"

// blockSplitTableBuilder is the default, in-process implementation of
// CapacitySplitTableBuilder: it accumulates entries into fixed-size blocks,
// compresses each with s2, checksums it with crc32, and cuts a new table
// once the running size crosses the target.
type blockSplitTableBuilder struct {
	targetSize int
	blockSize  int
	mint       tableIDMinter

	finished []builtTable
	cur      *tableInProgress
}

type tableInProgress struct {
	id       uint64
	smallest FullKey
	largest  FullKey
	blocks   [][]byte
	curBlock *bytes.Buffer
	size     int
}

func newBlockSplitTableBuilder(targetSize, blockSize int, mint tableIDMinter) *blockSplitTableBuilder {
	return &blockSplitTableBuilder{targetSize: targetSize, blockSize: blockSize, mint: mint}
}

// AddFullKey appends one entry, lazily minting a table id on the first key of
// a new table and flushing a block once it reaches blockSize. Once the
// current table's size has reached targetSize, the table is cut before the
// next key that is marked as a split point and carries a different user key
// than the table's last key, so one user key never spans two tables.
func (b *blockSplitTableBuilder) AddFullKey(ctx context.Context, key FullKey, v Value, allowSplit bool) error {
	if b.cur != nil && allowSplit && b.cur.size >= b.targetSize &&
		!bytes.Equal(UserKeyOf(b.cur.largest), UserKeyOf(key)) {
		b.closeTable(b.cur)
		b.cur = nil
	}
	if b.cur == nil {
		if err := b.openTable(ctx); err != nil {
			return err
		}
	}
	cur := b.cur
	if cur.smallest == nil {
		cur.smallest = append(FullKey{}, key...)
	}
	cur.largest = append(FullKey{}, key...)

	if cur.curBlock == nil {
		cur.curBlock = new(bytes.Buffer)
	}
	entry := encodeTableEntry(key, v)
	cur.curBlock.Write(entry)
	cur.size += len(entry)

	if cur.curBlock.Len() >= b.blockSize {
		b.flushBlock(cur)
	}
	return nil
}

func (b *blockSplitTableBuilder) openTable(ctx context.Context) error {
	id, err := b.mint(ctx)
	if err != nil {
		return err
	}
	b.cur = &tableInProgress{id: id}
	return nil
}

func (b *blockSplitTableBuilder) flushBlock(t *tableInProgress) {
	if t.curBlock == nil || t.curBlock.Len() == 0 {
		return
	}
	raw := t.curBlock.Bytes()
	compressed := s2.Encode(nil, raw)
	checksum := crc32.ChecksumIEEE(compressed)

	block := make([]byte, 0, len(compressed)+4)
	block = append(block, compressed...)
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], checksum)
	block = append(block, sumBuf[:]...)

	t.blocks = append(t.blocks, block)
	t.curBlock = nil
}

func (b *blockSplitTableBuilder) closeTable(t *tableInProgress) {
	b.flushBlock(t)
	b.finished = append(b.finished, builtTable{
		ID:          t.id,
		SmallestKey: t.smallest,
		LargestKey:  t.largest,
		Blocks:      t.blocks,
		Encoded:     encodeBuiltTable(t),
	})
}

// Finish closes any table still in progress and returns every built table,
// clearing internal state.
func (b *blockSplitTableBuilder) Finish(ctx context.Context) ([]builtTable, error) {
	_ = ctx
	if b.cur != nil {
		b.closeTable(b.cur)
		b.cur = nil
	}
	out := b.finished
	b.finished = nil
	return out, nil
}

func encodeTableEntry(key FullKey, v Value) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(key)))
	buf.Write(key)
	if v.IsDelete() {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeUvarint(&buf, uint64(len(v.Data)))
		buf.Write(v.Data)
	}
	return buf.Bytes()
}

func encodeBuiltTable(t *tableInProgress) []byte {
	var buf bytes.Buffer
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], tableMagic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(t.blocks)))
	buf.Write(hdr[:])
	for _, blk := range t.blocks {
		var ln [4]byte
		binary.BigEndian.PutUint32(ln[:], uint32(len(blk)))
		buf.Write(ln[:])
		buf.Write(blk)
	}
	return buf.Bytes()
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

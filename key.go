package stratum

import (
	"bytes"
	"encoding/binary"
)

// epochSize is the width, in bytes, of the big-endian epoch suffix appended
// to a user key to form a full key.
const epochSize = 8

// cellIndexSize is the width of the big-endian cell-index suffix appended to
// a primary key when a logical row is decomposed into per-column cells.
const cellIndexSize = 4

// UserKey is an opaque, externally-serialized byte string. Two user keys are
// ordered lexicographically.
type UserKey = []byte

// FullKey is user_key ‖ epoch. CompareFullKeys orders full keys first by user
// key ascending, then by epoch descending; the epoch suffix is bit-flipped so
// that, for one user key, a larger epoch encodes to smaller bytes. Callers
// elsewhere only rely on the sort contract, never on the encoding itself.
type FullKey = []byte

// EncodeFullKey appends epoch to userKey using the descending-epoch encoding.
func EncodeFullKey(userKey []byte, epoch uint64) FullKey {
	buf := make([]byte, len(userKey)+epochSize)
	copy(buf, userKey)
	binary.BigEndian.PutUint64(buf[len(userKey):], ^epoch)
	return buf
}

// SplitFullKey recovers the user key and epoch from a full key.
func SplitFullKey(fk FullKey) (userKey []byte, epoch uint64) {
	n := len(fk)
	userKey = fk[:n-epochSize]
	epoch = ^binary.BigEndian.Uint64(fk[n-epochSize:])
	return
}

// UserKeyOf projects the user-key prefix out of a full key without decoding
// the epoch.
func UserKeyOf(fk FullKey) []byte {
	return fk[:len(fk)-epochSize]
}

// EpochOf decodes the epoch suffix of a full key.
func EpochOf(fk FullKey) uint64 {
	return ^binary.BigEndian.Uint64(fk[len(fk)-epochSize:])
}

// CompareFullKeys orders two full keys "user key ascending, epoch
// descending": it compares the user-key projections first (so a user key
// sorts before every longer user key it prefixes), then the encoded epoch
// suffixes.
func CompareFullKeys(a, b FullKey) int {
	if c := bytes.Compare(UserKeyOf(a), UserKeyOf(b)); c != 0 {
		return c
	}
	return bytes.Compare(a[len(a)-epochSize:], b[len(b)-epochSize:])
}

// CellKey builds the store-side key for cell cellIdx of the row keyed by pk:
// pk ‖ cell_idx_be32.
func CellKey(pk []byte, cellIdx uint32) []byte {
	buf := make([]byte, len(pk)+cellIndexSize)
	copy(buf, pk)
	binary.BigEndian.PutUint32(buf[len(pk):], cellIdx)
	return buf
}

// SplitCellKey recovers the primary key and cell index from a cell key
// produced by CellKey.
func SplitCellKey(ck []byte) (pk []byte, cellIdx uint32) {
	n := len(ck)
	pk = ck[:n-cellIndexSize]
	cellIdx = binary.BigEndian.Uint32(ck[n-cellIndexSize:])
	return
}

// KeyRange describes a (possibly half-open, possibly unbounded) range over
// user keys, as used by MemtableManager.Iters / ReverseIters.
type KeyRange struct {
	Start          []byte
	End            []byte
	StartExclusive bool
	EndExclusive   bool
	StartUnbounded bool
	EndUnbounded   bool
}

// FullRange is the unbounded range over all user keys.
func FullRange() KeyRange {
	return KeyRange{StartUnbounded: true, EndUnbounded: true}
}

// Overlaps reports whether a memtable spanning [startUserKey, endUserKey]
// overlaps this range: R.end ≥ s and R.start ≤ e, honoring inclusivity. The
// reverse flag does not change the overlap predicate — only the direction a
// caller subsequently walks matching cursors — but is accepted here so call
// sites read the same way the manager's iters/reverse_iters do.
func (r KeyRange) Overlaps(startUserKey, endUserKey []byte, reverse bool) bool {
	_ = reverse
	endGE := r.EndUnbounded
	if !endGE {
		cmp := bytes.Compare(r.End, startUserKey)
		if r.EndExclusive {
			endGE = cmp > 0
		} else {
			endGE = cmp >= 0
		}
	}
	if !endGE {
		return false
	}
	startLE := r.StartUnbounded
	if !startLE {
		cmp := bytes.Compare(r.Start, endUserKey)
		if r.StartExclusive {
			startLE = cmp < 0
		} else {
			startLE = cmp <= 0
		}
	}
	return startLE
}

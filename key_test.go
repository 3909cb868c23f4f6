package stratum

import (
	"bytes"
	"sort"
	"testing"
)

func TestEncodeDecodeFullKeyRoundTrip(t *testing.T) {
	fk := EncodeFullKey([]byte("orders/42"), 17)
	u, e := SplitFullKey(fk)
	if !bytes.Equal(u, []byte("orders/42")) {
		t.Fatalf("user key mismatch: %q", u)
	}
	if e != 17 {
		t.Fatalf("epoch mismatch: %d", e)
	}
	if !bytes.Equal(UserKeyOf(fk), u) {
		t.Fatalf("UserKeyOf mismatch")
	}
	if EpochOf(fk) != 17 {
		t.Fatalf("EpochOf mismatch")
	}
}

// TestFullKeyOrderingNewerEpochFirst is invariant I-1 from the testable
// properties: for equal user keys, a full key with a newer (larger) epoch
// sorts before one with an older epoch.
func TestFullKeyOrderingNewerEpochFirst(t *testing.T) {
	older := EncodeFullKey([]byte("k"), 1)
	newer := EncodeFullKey([]byte("k"), 2)
	if CompareFullKeys(newer, older) >= 0 {
		t.Fatalf("expected newer epoch to sort before older epoch")
	}
}

func TestFullKeyOrderingByUserKeyFirst(t *testing.T) {
	a := EncodeFullKey([]byte("a"), 100)
	b := EncodeFullKey([]byte("b"), 1)
	if CompareFullKeys(a, b) >= 0 {
		t.Fatalf("expected user key ordering to dominate epoch ordering")
	}
}

func TestFullKeySortStability(t *testing.T) {
	keys := []FullKey{
		EncodeFullKey([]byte("b"), 5),
		EncodeFullKey([]byte("a"), 9),
		EncodeFullKey([]byte("a"), 1),
		EncodeFullKey([]byte("a"), 5),
	}
	sort.Slice(keys, func(i, j int) bool { return CompareFullKeys(keys[i], keys[j]) < 0 })

	want := [][2]interface{}{
		{"a", uint64(9)},
		{"a", uint64(5)},
		{"a", uint64(1)},
		{"b", uint64(5)},
	}
	for i, k := range keys {
		u, e := SplitFullKey(k)
		if string(u) != want[i][0] || e != want[i][1] {
			t.Fatalf("slot %d: got (%s,%d), want (%v,%v)", i, u, e, want[i][0], want[i][1])
		}
	}
}

func TestCellKeyRoundTrip(t *testing.T) {
	ck := CellKey([]byte("pk-1"), 3)
	pk, idx := SplitCellKey(ck)
	if !bytes.Equal(pk, []byte("pk-1")) || idx != 3 {
		t.Fatalf("got (%q,%d)", pk, idx)
	}
}

func TestKeyRangeOverlaps(t *testing.T) {
	r := KeyRange{Start: []byte("d"), End: []byte("m")}
	cases := []struct {
		s, e []byte
		want bool
	}{
		{[]byte("a"), []byte("c"), false},  // entirely before
		{[]byte("a"), []byte("d"), true},   // touches at boundary
		{[]byte("e"), []byte("f"), true},   // fully inside
		{[]byte("m"), []byte("z"), true},   // touches at end boundary
		{[]byte("n"), []byte("z"), false},  // entirely after
	}
	for _, c := range cases {
		if got := r.Overlaps(c.s, c.e, false); got != c.want {
			t.Fatalf("Overlaps(%q,%q) = %v, want %v", c.s, c.e, got, c.want)
		}
	}
}

func TestFullRangeOverlapsEverything(t *testing.T) {
	r := FullRange()
	if !r.Overlaps([]byte{0x00}, []byte{0xff}, false) {
		t.Fatalf("full range must overlap everything")
	}
}

package stratum

import "testing"

func TestNewImmutableMemtableRejectsEmpty(t *testing.T) {
	if _, err := NewImmutableMemtable(nil, 1); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}

func TestNewImmutableMemtableRejectsUnsorted(t *testing.T) {
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("b"), 1), Value: NewPutValue([]byte("1"))},
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("2"))},
	}
	if _, err := NewImmutableMemtable(items, 1); err == nil {
		t.Fatalf("expected error for unsorted batch")
	}
}

func TestNewImmutableMemtableRejectsDuplicateFullKey(t *testing.T) {
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("1"))},
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("2"))},
	}
	if _, err := NewImmutableMemtable(items, 1); err == nil {
		t.Fatalf("expected error for duplicate full key")
	}
}

func TestImmutableMemtableGet(t *testing.T) {
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("va"))},
		{FullKey: EncodeFullKey([]byte("c"), 1), Value: NewDeleteValue()},
		{FullKey: EncodeFullKey([]byte("e"), 1), Value: NewPutValue([]byte("ve"))},
	}
	m, err := NewImmutableMemtable(items, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := m.Get([]byte("a")); !ok || string(v.Data) != "va" {
		t.Fatalf("got %v, %v", v, ok)
	}
	if v, ok := m.Get([]byte("c")); !ok || !v.IsDelete() {
		t.Fatalf("expected tombstone for c, got %v, %v", v, ok)
	}
	if _, ok := m.Get([]byte("b")); ok {
		t.Fatalf("expected no entry for b")
	}
	if m.StartUserKey()[0] != 'a' || m.EndUserKey()[0] != 'e' {
		t.Fatalf("unexpected start/end user keys")
	}
}

func TestMemtableIteratorForwardAndReverse(t *testing.T) {
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("1"))},
		{FullKey: EncodeFullKey([]byte("b"), 1), Value: NewPutValue([]byte("2"))},
		{FullKey: EncodeFullKey([]byte("c"), 1), Value: NewPutValue([]byte("3"))},
	}
	m, err := NewImmutableMemtable(items, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fwd []byte
	it := m.Iter()
	for it.Valid() {
		fwd = append(fwd, UserKeyOf(it.Key())[0])
		it.Next()
	}
	if string(fwd) != "abc" {
		t.Fatalf("forward order = %q, want abc", fwd)
	}

	var rev []byte
	rit := m.ReverseIter()
	for rit.Valid() {
		rev = append(rev, UserKeyOf(rit.Key())[0])
		rit.Next()
	}
	if string(rev) != "cba" {
		t.Fatalf("reverse order = %q, want cba", rev)
	}
}

func TestMemtableIteratorSeek(t *testing.T) {
	items := []MemtableItem{
		{FullKey: EncodeFullKey([]byte("a"), 1), Value: NewPutValue([]byte("1"))},
		{FullKey: EncodeFullKey([]byte("c"), 1), Value: NewPutValue([]byte("2"))},
		{FullKey: EncodeFullKey([]byte("e"), 1), Value: NewPutValue([]byte("3"))},
	}
	m, err := NewImmutableMemtable(items, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := m.Iter()
	it.Seek(EncodeFullKey([]byte("b"), 1))
	if !it.Valid() || UserKeyOf(it.Key())[0] != 'c' {
		t.Fatalf("expected seek to land on c")
	}
}

package stratum

import "testing"

// TestFlushStatusFoldAlgebra covers scenario S4: every (cur, op) transition
// of the fold algebra in §4.5.
func TestFlushStatusFoldAlgebra(t *testing.T) {
	var absent FlushStatus[string]

	ins := FoldInsert(absent, false, "v1")
	if v, ok := ins.IntoOption(); !ok || v != "v1" {
		t.Fatalf("absent -> insert(v1): got %v, %v", v, ok)
	}

	ins2 := FoldInsert(ins, true, "v2")
	if v, ok := ins2.IntoOption(); !ok || v != "v2" {
		t.Fatalf("Insert(v1) -> insert(v2): got %v, %v", v, ok)
	}

	del := FoldDelete(ins2, true)
	if _, ok := del.IntoOption(); ok {
		t.Fatalf("Insert(_) -> delete should yield Delete")
	}

	di := FoldInsert(del, true, "v3")
	if v, ok := di.IntoOption(); !ok || v != "v3" {
		t.Fatalf("Delete -> insert(v3) should yield DeleteInsert(v3): got %v, %v", v, ok)
	}

	di2 := FoldInsert(di, true, "v4")
	if v, ok := di2.IntoOption(); !ok || v != "v4" {
		t.Fatalf("DeleteInsert(_) -> insert(v4) should yield DeleteInsert(v4): got %v, %v", v, ok)
	}

	del2 := FoldDelete(di2, true)
	if _, ok := del2.IntoOption(); ok {
		t.Fatalf("DeleteInsert(_) -> delete should yield Delete")
	}

	del3 := FoldDelete(del2, true)
	if _, ok := del3.IntoOption(); ok {
		t.Fatalf("Delete -> delete should stay Delete (idempotent)")
	}

	delAbsent := FoldDelete(absent, false)
	if _, ok := delAbsent.IntoOption(); ok {
		t.Fatalf("absent -> delete should yield Delete")
	}
}

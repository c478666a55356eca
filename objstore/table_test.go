package objstore_test

import (
	"testing"

	"github.com/ehrlich-b/cinch/objstore"
)

func TestTable_AppendGetReplace(t *testing.T) {
	tbl := objstore.NewTable[string]()

	idx := tbl.Append("a")
	if idx != 0 {
		t.Fatalf("got index %d, want 0", idx)
	}
	idx = tbl.Append("b")
	if idx != 1 {
		t.Fatalf("got index %d, want 1", idx)
	}

	got, ok := tbl.Get(0)
	if !ok || got != "a" {
		t.Errorf("Get(0) = %q, %v; want %q, true", got, ok, "a")
	}

	if !tbl.Replace(1, "c") {
		t.Fatal("Replace(1) failed")
	}
	got, _ = tbl.Get(1)
	if got != "c" {
		t.Errorf("Get(1) after replace = %q, want %q", got, "c")
	}

	if _, ok := tbl.Get(5); ok {
		t.Error("Get(5) should fail on an out-of-range index")
	}
	if tbl.Replace(5, "z") {
		t.Error("Replace(5) should fail on an out-of-range index")
	}

	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

func TestTable_Find(t *testing.T) {
	tbl := objstore.NewTable[int]()
	tbl.Append(10)
	tbl.Append(20)
	tbl.Append(30)

	idx, ok := tbl.Find(func(v int) bool { return v == 20 })
	if !ok || idx != 1 {
		t.Errorf("Find(20) = %d, %v; want 1, true", idx, ok)
	}

	if _, ok := tbl.Find(func(v int) bool { return v == 99 }); ok {
		t.Error("Find(99) should not match")
	}
}

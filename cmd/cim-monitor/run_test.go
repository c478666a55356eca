package main

import (
	"testing"

	"github.com/ehrlich-b/cinch/objstore"
)

func TestInstanceForIsDeterministic(t *testing.T) {
	a := instanceFor("https://gitlab.example.com")
	b := instanceFor("https://gitlab.example.com")
	if a.UniqueID != b.UniqueID {
		t.Errorf("instanceFor is not deterministic: %d != %d", a.UniqueID, b.UniqueID)
	}
	other := instanceFor("https://gitlab.other.com")
	if a.UniqueID == other.UniqueID {
		t.Error("different URLs produced the same UniqueID")
	}
}

func TestFindInstanceLocatesExistingRecord(t *testing.T) {
	store := objstore.NewVectorStore()
	want := instanceFor("https://gitlab.example.com")
	stored := store.StoreInstance(want)

	got, ok := findInstance(store, want)
	if !ok {
		t.Fatal("expected to find the stored instance")
	}
	if got.VectorIndex() != stored.VectorIndex() {
		t.Errorf("found index %d, want %d", got.VectorIndex(), stored.VectorIndex())
	}
}

func TestFindInstanceMissesUnknownRecord(t *testing.T) {
	store := objstore.NewVectorStore()
	store.StoreInstance(instanceFor("https://gitlab.example.com"))

	if _, ok := findInstance(store, instanceFor("https://gitlab.other.com")); ok {
		t.Error("expected no match for a different instance")
	}
}

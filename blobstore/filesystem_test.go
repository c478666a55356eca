package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ehrlich-b/cinch/blobstore"
	"github.com/ehrlich-b/cinch/entity"
)

func TestSharding_Path(t *testing.T) {
	tests := []struct {
		name     string
		sharding blobstore.Sharding
		hash     string
		want     string
	}{
		{"once", blobstore.Once(2), "aabbccdd", filepath.Join("aa", "bbccdd")},
		{"twice", blobstore.Twice(2, 2), "aabbccdd", filepath.Join("aa", "bb", "ccdd")},
		{"thrice", blobstore.Thrice(2, 2, 2), "aabbccdd", filepath.Join("aa", "bb", "cc", "dd")},
		{"too short", blobstore.Once(2), "a", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sharding.Path(tt.hash)
			if err != nil {
				t.Fatalf("Path failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSharding_InvalidBreakpoints(t *testing.T) {
	if _, err := (blobstore.Sharding{Breakpoints: []int{2, 0}}).Path("aabbcc"); err == nil {
		t.Fatal("expected error for zero-length breakpoint")
	}
	if _, err := (blobstore.Sharding{Breakpoints: []int{1, 1, 1, 1}}).Path("aabbcc"); err == nil {
		t.Fatal("expected error for too many breakpoints")
	}
}

func TestFilesystemStore_PutFetchVerify(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blobstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := blobstore.CreateFilesystemStore(tmpDir, entity.ContentHashSHA256, blobstore.DefaultSharding(), nil)
	if err != nil {
		t.Fatalf("CreateFilesystemStore failed: %v", err)
	}

	ctx := context.Background()
	data := []byte("hello, ci-monitor")

	ref, err := store.Put(ctx, data, entity.ContentHashSHA256)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Fetch(ctx, ref)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	if err := store.Verify(ctx, ref); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Storing identical bytes again must be idempotent.
	ref2, err := store.Put(ctx, data, entity.ContentHashSHA256)
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if ref2 != ref {
		t.Errorf("expected identical reference, got %+v vs %+v", ref2, ref)
	}
}

func TestFilesystemStore_FetchMissing(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blobstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := blobstore.CreateFilesystemStore(tmpDir, entity.ContentHashSHA256, blobstore.DefaultSharding(), nil)
	if err != nil {
		t.Fatalf("CreateFilesystemStore failed: %v", err)
	}

	ref := entity.BlobReference{Algo: entity.ContentHashSHA256, Hash: entity.ContentHashSHA256.HashBlob([]byte("nope"))}
	if _, err := store.Fetch(context.Background(), ref); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestOpenFilesystemStore_ReadsBackConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blobstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if _, err := blobstore.CreateFilesystemStore(tmpDir, entity.ContentHashSHA512, blobstore.Once(2), nil); err != nil {
		t.Fatalf("CreateFilesystemStore failed: %v", err)
	}

	store, err := blobstore.OpenFilesystemStore(tmpDir, nil)
	if err != nil {
		t.Fatalf("OpenFilesystemStore failed: %v", err)
	}

	data := []byte("reopened store")
	ref, err := store.Put(context.Background(), data, entity.ContentHashSHA512)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ref.Algo != entity.ContentHashSHA512 {
		t.Errorf("expected a sha512 reference, got %v", ref.Algo)
	}
	// The Once(2) sharding read back from the config decides the on-disk path.
	if _, err := os.Stat(filepath.Join(tmpDir, "sha512", ref.Hash[:2], ref.Hash[2:])); err != nil {
		t.Errorf("expected blob at the sharding read back from config: %v", err)
	}
}

func TestAsyncStore_PutFetch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blobstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := blobstore.CreateFilesystemStore(tmpDir, entity.ContentHashSHA256, blobstore.DefaultSharding(), nil)
	if err != nil {
		t.Fatalf("CreateFilesystemStore failed: %v", err)
	}
	async := blobstore.NewAsync(store)

	ctx := context.Background()
	data := []byte("async blob")

	putRes := <-async.PutAsync(ctx, data, entity.ContentHashSHA256)
	if putRes.Err != nil {
		t.Fatalf("PutAsync failed: %v", putRes.Err)
	}

	fetchRes := <-async.FetchAsync(ctx, putRes.Ref)
	if fetchRes.Err != nil {
		t.Fatalf("FetchAsync failed: %v", fetchRes.Err)
	}
	if string(fetchRes.Data) != string(data) {
		t.Errorf("got %q, want %q", fetchRes.Data, data)
	}

	if err := <-async.VerifyAsync(ctx, putRes.Ref); err != nil {
		t.Errorf("VerifyAsync failed: %v", err)
	}
}

func TestOpenFilesystemStore_MissingConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blobstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if _, err := blobstore.OpenFilesystemStore(tmpDir, nil); err == nil {
		t.Fatal("expected error opening a directory with no persistence config")
	}
}

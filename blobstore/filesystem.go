package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/ehrlich-b/cinch/entity"
)

// persistenceConfig is the on-disk description of how a filesystem
// store directory is laid out. It is written once, on first use, and
// read back on every subsequent open so a store's sharding scheme never
// silently changes out from under already-written blobs.
type persistenceConfig struct {
	Algo        string `toml:"algo"`
	Breakpoints []int  `toml:"breakpoints"`
}

const persistenceFileName = "cim_persistence.toml"

// Sharding splits a hex digest into nested directory components so a
// single directory never holds an unbounded number of files. Each
// breakpoint is the number of leading hex characters peeled into one
// more directory level; 1 to 3 breakpoints are supported.
type Sharding struct {
	Breakpoints []int
}

// DefaultSharding splits the first 2 and next 2 hex characters into two
// directory levels (256 * 256 leaf directories), matching the teacher's
// own default file-layout fan-out in internal/logstore.
func DefaultSharding() Sharding {
	return Sharding{Breakpoints: []int{2, 2}}
}

// Once splits on a single prefix length.
func Once(first int) Sharding { return Sharding{Breakpoints: []int{first}} }

// Twice splits on two successive prefix lengths.
func Twice(first, second int) Sharding { return Sharding{Breakpoints: []int{first, second}} }

// Thrice splits on three successive prefix lengths.
func Thrice(first, second, third int) Sharding {
	return Sharding{Breakpoints: []int{first, second, third}}
}

func (s Sharding) validate() error {
	if len(s.Breakpoints) > 3 {
		return fmt.Errorf("blobstore: sharding supports at most 3 breakpoints, got %d", len(s.Breakpoints))
	}
	for _, bp := range s.Breakpoints {
		if bp <= 0 {
			return fmt.Errorf("blobstore: zero-length breakpoints are not supported")
		}
	}
	return nil
}

// Path returns the relative path (directories plus filename) at which a
// digest is stored. A hash shorter than the sum of the breakpoints is
// stored unsharded, at the top level.
func (s Sharding) Path(hash string) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	var total int
	for _, bp := range s.Breakpoints {
		total += bp
	}
	if total > len(hash) {
		return hash, nil
	}
	var parts []string
	rest := hash
	for _, bp := range s.Breakpoints {
		parts = append(parts, rest[:bp])
		rest = rest[bp:]
	}
	parts = append(parts, rest)
	return filepath.Join(parts...), nil
}

// FilesystemStore stores blobs as plain files under a sharded directory
// tree rooted at dir.
type FilesystemStore struct {
	root     string
	sharding Sharding
	algo     entity.ContentHash
	log      *slog.Logger

	mu sync.Mutex
}

// CreateFilesystemStore initializes a new filesystem blob store rooted
// at dir, writing a fresh cim_persistence.toml describing algo and
// sharding. It fails if a config already exists there.
func CreateFilesystemStore(dir string, algo entity.ContentHash, sharding Sharding, log *slog.Logger) (*FilesystemStore, error) {
	if err := sharding.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating store directory: %w", err)
	}

	cfgPath := filepath.Join(dir, persistenceFileName)
	f, err := os.OpenFile(cfgPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blobstore: creating %s: %w", persistenceFileName, err)
	}
	defer f.Close()

	cfg := persistenceConfig{Algo: algo.Name(), Breakpoints: sharding.Breakpoints}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("blobstore: writing %s: %w", persistenceFileName, err)
	}

	return &FilesystemStore{root: dir, sharding: sharding, algo: algo, log: log}, nil
}

// OpenFilesystemStore opens an existing filesystem blob store rooted at
// dir, reading its sharding and hash algorithm back from
// cim_persistence.toml.
func OpenFilesystemStore(dir string, log *slog.Logger) (*FilesystemStore, error) {
	if log == nil {
		log = slog.Default()
	}
	cfgPath := filepath.Join(dir, persistenceFileName)

	var cfg persistenceConfig
	if _, err := toml.DecodeFile(cfgPath, &cfg); err != nil {
		return nil, fmt.Errorf("blobstore: reading %s: %w", persistenceFileName, err)
	}

	algo, ok := entity.ParseContentHash(cfg.Algo)
	if !ok {
		return nil, fmt.Errorf("blobstore: unknown content hash algorithm %q in %s", cfg.Algo, persistenceFileName)
	}
	sharding := Sharding{Breakpoints: cfg.Breakpoints}
	if err := sharding.validate(); err != nil {
		return nil, fmt.Errorf("blobstore: invalid sharding in %s: %w", persistenceFileName, err)
	}

	return &FilesystemStore{root: dir, sharding: sharding, algo: algo, log: log}, nil
}

// OpenOrCreateFilesystemStore opens dir if it already has a persistence
// config, or initializes a fresh one with defaultAlgo and
// defaultSharding otherwise.
func OpenOrCreateFilesystemStore(dir string, defaultAlgo entity.ContentHash, defaultSharding Sharding, log *slog.Logger) (*FilesystemStore, error) {
	if _, err := os.Stat(filepath.Join(dir, persistenceFileName)); err == nil {
		return OpenFilesystemStore(dir, log)
	}
	return CreateFilesystemStore(dir, defaultAlgo, defaultSharding, log)
}

func (s *FilesystemStore) pathFor(ref entity.BlobReference) (string, error) {
	rel, err := s.sharding.Path(ref.Hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, ref.Algo.Name(), rel), nil
}

// Put stores data, content-addressed under algo. Writing the same
// bytes twice is idempotent: the second call sees the file already
// present and returns without rewriting it.
func (s *FilesystemStore) Put(ctx context.Context, data []byte, algo entity.ContentHash) (entity.BlobReference, error) {
	ref := entity.ForBlob(data, algo)

	path, err := s.pathFor(ref)
	if err != nil {
		return entity.BlobReference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return entity.BlobReference{}, Connection("put", fmt.Errorf("create shard directory: %w", err))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return entity.BlobReference{}, Connection("put", fmt.Errorf("write blob: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return entity.BlobReference{}, Connection("put", fmt.Errorf("finalize blob: %w", err))
	}

	s.log.Debug("stored blob", "algo", ref.Algo.Name(), "hash", ref.Hash, "bytes", len(data))
	return ref, nil
}

// Fetch returns the bytes named by ref.
func (s *FilesystemStore) Fetch(ctx context.Context, ref entity.BlobReference) ([]byte, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFound("fetch", err)
		}
		return nil, Connection("fetch", err)
	}
	return data, nil
}

// Verify confirms the blob named by ref is present and its content
// still hashes to ref's digest.
func (s *FilesystemStore) Verify(ctx context.Context, ref entity.BlobReference) error {
	return VerifyByFetch(ctx, s, ref)
}

// DefaultDir returns the default filesystem store location, matching
// the teacher's own CINCH_DATA_DIR convention for on-disk state.
func DefaultDir() string {
	if dataDir := os.Getenv("CIM_MONITOR_DATA_DIR"); dataDir != "" {
		return filepath.Join(dataDir, "blobs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "blobs"
	}
	return filepath.Join(home, ".cim-monitor", "blobs")
}

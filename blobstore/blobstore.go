// Package blobstore is the content-addressed binary blob store. Blobs
// are addressed by an entity.BlobReference (hash algorithm + hex
// digest); a backend's only job is to persist bytes under that key and
// hand them back unchanged.
package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ehrlich-b/cinch/entity"
)

// Store persists and retrieves content-addressed blobs.
type Store interface {
	// Put stores data and returns its reference under algo. Storing the
	// same bytes twice is a no-op: the second Put resolves to the same
	// reference without rewriting anything.
	Put(ctx context.Context, data []byte, algo entity.ContentHash) (entity.BlobReference, error)

	// Fetch returns the bytes named by ref.
	Fetch(ctx context.Context, ref entity.BlobReference) ([]byte, error)

	// Verify confirms the blob named by ref is present and its content
	// still hashes to ref's digest.
	Verify(ctx context.Context, ref entity.BlobReference) error
}

// PutResult is the outcome of an asynchronous Put.
type PutResult struct {
	Ref entity.BlobReference
	Err error
}

// FetchResult is the outcome of an asynchronous Fetch.
type FetchResult struct {
	Data []byte
	Err  error
}

// AsyncStore is the non-blocking counterpart to Store: every call
// returns immediately with a channel that receives exactly one result.
// Cancelling ctx is cooperative — the underlying operation observes it
// at its own suspend points (e.g. the next read/write syscall) rather
// than being torn down instantly. DefaultAsync adapts any Store into
// an AsyncStore by running each call on its own goroutine.
type AsyncStore interface {
	PutAsync(ctx context.Context, data []byte, algo entity.ContentHash) <-chan PutResult
	FetchAsync(ctx context.Context, ref entity.BlobReference) <-chan FetchResult
	VerifyAsync(ctx context.Context, ref entity.BlobReference) <-chan error
}

// DefaultAsync wraps a synchronous Store so it also satisfies
// AsyncStore, running each call on its own goroutine.
type DefaultAsync struct {
	Store
}

// NewAsync adapts s into an AsyncStore.
func NewAsync(s Store) AsyncStore {
	return DefaultAsync{Store: s}
}

func (a DefaultAsync) PutAsync(ctx context.Context, data []byte, algo entity.ContentHash) <-chan PutResult {
	out := make(chan PutResult, 1)
	go func() {
		ref, err := a.Put(ctx, data, algo)
		out <- PutResult{Ref: ref, Err: err}
	}()
	return out
}

func (a DefaultAsync) FetchAsync(ctx context.Context, ref entity.BlobReference) <-chan FetchResult {
	out := make(chan FetchResult, 1)
	go func() {
		data, err := a.Fetch(ctx, ref)
		out <- FetchResult{Data: data, Err: err}
	}()
	return out
}

func (a DefaultAsync) VerifyAsync(ctx context.Context, ref entity.BlobReference) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- a.Verify(ctx, ref)
	}()
	return out
}

// ErrorKind classifies a Store failure so callers can decide whether to
// retry, re-authenticate, or give up.
type ErrorKind uint8

const (
	ErrorKindOther ErrorKind = iota
	ErrorKindAuth
	ErrorKindConnection
	ErrorKindNotFound
	ErrorKindInvalid
)

// Error wraps a backend failure with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("blobstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound constructs an ErrorKindNotFound Error.
func NotFound(op string, err error) error {
	return &Error{Kind: ErrorKindNotFound, Op: op, Err: err}
}

// Connection constructs an ErrorKindConnection Error.
func Connection(op string, err error) error {
	return &Error{Kind: ErrorKindConnection, Op: op, Err: err}
}

// Auth constructs an ErrorKindAuth Error.
func Auth(op string, err error) error {
	return &Error{Kind: ErrorKindAuth, Op: op, Err: err}
}

// Invalid constructs an ErrorKindInvalid Error, used when a blob on
// disk no longer hashes to its claimed reference.
func Invalid(op string, err error) error {
	return &Error{Kind: ErrorKindInvalid, Op: op, Err: err}
}

// VerifyByFetch implements Verify generically in terms of Fetch, for
// backends with no cheaper way to confirm integrity. Backends that can
// check presence+hash without transferring the full blob (e.g. via a
// HEAD request plus a stored digest) should provide their own Verify
// instead of using this helper.
func VerifyByFetch(ctx context.Context, s Store, ref entity.BlobReference) error {
	data, err := s.Fetch(ctx, ref)
	if err != nil {
		return err
	}
	got := ref.Algo.HashBlob(data)
	if !bytes.Equal([]byte(got), []byte(ref.Hash)) {
		return Invalid("verify", fmt.Errorf("hash mismatch: stored %s, computed %s", ref.Hash, got))
	}
	return nil
}

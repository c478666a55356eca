// Package ref provides the generic reference type shared by every Object
// Store backend and by the entity model.
//
// A Ref[T] is typed per entity type (Ref[Project] and Ref[User] are
// distinct Go types), cheaply copyable, and comparable, so it can be used
// directly as a map key. It unifies the two Object Store backends: the
// vector backend stores a dense integer index, the interned backend stores
// a shared pointer to the record itself.
package ref

import (
	"encoding/json"
	"errors"
)

// Kind identifies which backend produced a Ref.
type Kind uint8

const (
	// KindVector marks a Ref produced by the vector backend: Vec holds a
	// dense index into that entity type's sequence.
	KindVector Kind = iota
	// KindIntern marks a Ref produced by the interned backend: Ptr holds
	// a shared pointer to the record.
	KindIntern
)

// Ref is an opaque handle to a stored record of type T. The zero value is
// invalid and never returned by a backend's Store method.
type Ref[T any] struct {
	kind Kind
	set  bool
	vec  int
	ptr  *T
}

// Vector constructs a vector-backend Ref from a dense index.
func Vector[T any](idx int) Ref[T] {
	return Ref[T]{kind: KindVector, set: true, vec: idx}
}

// Intern constructs an interned-backend Ref from a shared pointer.
func Intern[T any](p *T) Ref[T] {
	return Ref[T]{kind: KindIntern, set: true, ptr: p}
}

// Valid reports whether the Ref was produced by a Store call (as opposed
// to being a zero value, e.g. an unset optional reference field).
func (r Ref[T]) Valid() bool {
	return r.set
}

// Kind reports which backend produced the Ref.
func (r Ref[T]) Kind() Kind {
	return r.kind
}

// VectorIndex returns the dense index for a vector-backend Ref. It panics
// if called on a Ref of a different kind; callers that don't control the
// backend should check Kind first.
func (r Ref[T]) VectorIndex() int {
	if r.kind != KindVector {
		panic("ref: VectorIndex called on non-vector Ref")
	}
	return r.vec
}

// InternPtr returns the shared pointer for an interned-backend Ref. It
// panics if called on a Ref of a different kind.
func (r Ref[T]) InternPtr() *T {
	if r.kind != KindIntern {
		panic("ref: InternPtr called on non-intern Ref")
	}
	return r.ptr
}

// MarshalJSON encodes a vector Ref as its integer index and an unset Ref
// as null. Interned Refs cannot be marshaled: they have no stable
// on-disk representation, since the persisted form is exactly the
// vector backend's.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if !r.set {
		return []byte("null"), nil
	}
	if r.kind != KindVector {
		return nil, errors.New("ref: cannot marshal a non-vector Ref to JSON")
	}
	return json.Marshal(r.vec)
}

// UnmarshalJSON decodes a vector Ref from its integer index, or leaves
// the Ref unset for a null value.
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ref[T]{}
		return nil
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	*r = Vector[T](idx)
	return nil
}

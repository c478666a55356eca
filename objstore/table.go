// Package objstore is the typed, per-entity-type object store. It
// provides two backends: a "vector" backend, a dense append-only
// sequence persisted as JSON, and an "intern" backend, shared-pointer
// records that mutate in place so existing references observe updates.
package objstore

// Table is a dense, insertion-ordered sequence of records of type T,
// addressed by integer index. Record counts per project are expected to
// stay small enough that linear scan for identity-based upsert is fine;
// this mirrors the upstream vector backend's own assumption.
type Table[T any] struct {
	rows []T
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

// Append adds v to the end of the table and returns its index.
func (t *Table[T]) Append(v T) int {
	t.rows = append(t.rows, v)
	return len(t.rows) - 1
}

// Get returns the record at idx, if it exists.
func (t *Table[T]) Get(idx int) (T, bool) {
	var zero T
	if idx < 0 || idx >= len(t.rows) {
		return zero, false
	}
	return t.rows[idx], true
}

// Replace overwrites the record at idx in place.
func (t *Table[T]) Replace(idx int, v T) bool {
	if idx < 0 || idx >= len(t.rows) {
		return false
	}
	t.rows[idx] = v
	return true
}

// All returns every record currently in the table, in index order.
func (t *Table[T]) All() []T {
	return t.rows
}

// Len reports the number of records in the table.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Find returns the index of the first record matching pred.
func (t *Table[T]) Find(pred func(T) bool) (int, bool) {
	for i, v := range t.rows {
		if pred(v) {
			return i, true
		}
	}
	return -1, false
}

// upsert finds the record matching identity and replaces it, or appends
// v as a new record when no match exists. It is the common path for
// every Store<Type> method: forge records are addressed by forge ID, so
// re-fetching an already-known record updates it in place rather than
// duplicating it.
func upsert[T any](t *Table[T], v T, identity func(T) bool) int {
	if idx, ok := t.Find(identity); ok {
		t.Replace(idx, v)
		return idx
	}
	return t.Append(v)
}

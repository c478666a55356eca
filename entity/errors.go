package entity

import "fmt"

// UninitializedFieldError is returned by a builder's Build method when a
// required field was never set. It names exactly one field: the first
// missing field in declaration order.
type UninitializedFieldError struct {
	Type  string
	Field string
}

func (e *UninitializedFieldError) Error() string {
	return fmt.Sprintf("%s: uninitialized field %q", e.Type, e.Field)
}

func uninitialized(typ, field string) error {
	return &UninitializedFieldError{Type: typ, Field: field}
}

package forge

import (
	"errors"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	task := UpdateProject{Project: 42}
	base := errors.New("boom")

	cases := []struct {
		name string
		err  *Error
		kind ErrorKind
	}{
		{"connection", connectionErr(task, base), Connection},
		{"auth", authErr(task, base), Auth},
		{"notfound", notFoundErr(task, base), NotFound},
		{"unhandled", unhandledErr(task), Unhandled},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.err.Kind != c.kind {
				t.Errorf("Kind = %v, want %v", c.err.Kind, c.kind)
			}
			if c.err.Task != task {
				t.Errorf("Task = %v, want %v", c.err.Task, task)
			}
			if c.err.Error() == "" {
				t.Error("Error() returned empty string")
			}
			if c.name != "unhandled" && !errors.Is(c.err, base) {
				t.Error("Unwrap should expose the wrapped error")
			}
		})
	}
}

func TestErrorMessageWithoutTask(t *testing.T) {
	e := &Error{Kind: Connection, Err: errors.New("no task here")}
	if e.Error() == "" {
		t.Error("Error() returned empty string for a task-less error")
	}
}

package history

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyHistory = errors.New("nothing to undo or redo")
	ErrPersistence  = errors.New("persistence failed")
)

// PersistenceError reports a failed store or load. It matches both
// [ErrPersistence] and its cause with errors.Is.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

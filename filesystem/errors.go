package filesystem

import (
	"errors"
	"fmt"
)

// Namespace errors. Operations wrap these in an [OpError] so callers classify
// failures with errors.Is.
var (
	ErrDuplicateName    = errors.New("name already exists")
	ErrInvalidName      = errors.New("invalid name")
	ErrNotFound         = errors.New("no such file or directory")
	ErrNotADirectory    = errors.New("not a directory")
	ErrAtRoot           = errors.New("already at root directory")
	ErrCapacityExceeded = errors.New("disk capacity exceeded")
	ErrInvalidCapacity  = errors.New("invalid disk capacity")
)

// OpError records the operation and entry name of a failed namespace operation.
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op, name string, err error) error {
	return &OpError{Op: op, Name: name, Err: err}
}

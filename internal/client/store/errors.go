package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrWriteExhausted = errors.New("store write exhausted")
)

// WriteExhaustedError is returned by Set once every attempt has failed.
type WriteExhaustedError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *WriteExhaustedError) Error() string {
	return fmt.Sprintf("write of %q failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *WriteExhaustedError) Is(target error) bool {
	return target == ErrWriteExhausted
}

func (e *WriteExhaustedError) Unwrap() error {
	return e.Err
}

// ReadError and DeleteError describe failures that are logged and degraded,
// never returned to callers.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read of %q failed: %v", e.Key, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string { return fmt.Sprintf("delete of %q failed: %v", e.Key, e.Err) }
func (e *DeleteError) Unwrap() error { return e.Err }

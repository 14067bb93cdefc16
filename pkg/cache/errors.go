package cache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("cache is closed")

// PersistenceError describes a failed durable tier operation.
//
// These errors never reach callers of Get or Put: a durable failure only
// costs a cache miss or a lost write, so they are logged and counted.
type PersistenceError struct {
	Op  string // "get", "put" or "enqueue"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("durable %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// errQueueFull is wrapped in a PersistenceError when a durable write is
// dropped because the persist queue is saturated.
var errQueueFull = errors.New("persist queue full")

// Package store defines the durable tier contract used behind the in-memory
// image cache, plus helpers shared by its backends.
package store

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("entry not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store is a durable key/value tier for encoded image entries.
//
// Keys are image URLs used verbatim. Values are data URLs; backends treat
// them as opaque strings. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}

// Type names accepted by the store factory.
const (
	TypeNone     = "none"
	TypeMemory   = "memory"
	TypeBadger   = "badger"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeS3       = "s3"
	TypeRedis    = "redis"
)

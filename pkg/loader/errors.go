package loader

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/marmos91/imgloader/pkg/fetch"
)

var (
	// ErrInvalidKey matches every *InvalidKeyError.
	ErrInvalidKey = errors.New("invalid image url")

	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("image retrieval failed")

	// ErrCanceled is returned to waiters of a retrieval removed by
	// CancelPending before it was admitted.
	ErrCanceled = errors.New("retrieval canceled before start")

	// ErrClosed is returned by Load after Close, and to waiters of
	// retrievals still queued when Close was called.
	ErrClosed = errors.New("loader is closed")
)

// InvalidKeyError is returned when a key is not an absolute http(s) URL.
// It is reported before any cache, queue or in-flight state is touched.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid image url %q: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// NetworkError is returned when the origin answers with a non-2xx status or
// the transfer fails.
type NetworkError struct {
	URL string

	// StatusCode is the origin status, or 0 for transport failures.
	StatusCode int

	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Retryable reports whether a later attempt could succeed. The loader never
// retries on its own; a failed key is simply fetched again on the next Load.
func (e *NetworkError) Retryable() bool {
	return fetch.Temporary(e.Err)
}

// ValidateKey checks that key is an absolute http or https URL with a host.
func ValidateKey(key string) error {
	if key == "" {
		return &InvalidKeyError{Key: key, Reason: "empty"}
	}
	u, err := url.Parse(key)
	if err != nil {
		return &InvalidKeyError{Key: key, Reason: "unparseable"}
	}
	if !u.IsAbs() {
		return &InvalidKeyError{Key: key, Reason: "not absolute"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidKeyError{Key: key, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" || u.Hostname() == "" {
		return &InvalidKeyError{Key: key, Reason: "missing host"}
	}
	return nil
}

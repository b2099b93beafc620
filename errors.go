package kvengine

// errors.go defines the sentinel errors of the public API.

import "errors"

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("kvengine: key not found")

	// ErrEmptyKey is returned by Put and Delete for an empty key.
	// The operation has no effect: nothing is logged and the map is untouched.
	ErrEmptyKey = errors.New("kvengine: empty key")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kvengine: store is closed")

	// ErrInvalidOptions is returned by Open when options fail validation.
	ErrInvalidOptions = errors.New("kvengine: invalid options")

	// ErrLocked is returned by Open when another process holds the store's
	// LOCK file.
	ErrLocked = errors.New("kvengine: store is locked by another process")
)

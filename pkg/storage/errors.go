package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when no matching record exists.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record with the given request ID
	// already exists.
	ErrConflict = errors.New("record already exists")
)

package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a token does not exist, has expired, or was revoked.
	ErrNotFound = errors.New("token not found")

	// ErrConflict is returned when a token is already stored.
	ErrConflict = errors.New("token already exists")
)

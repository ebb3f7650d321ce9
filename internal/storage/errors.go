package storage

import "errors"

// Errors shared by every event store backend. The audit log is
// append-only, so there is no update path and no update error.
var (
	// ErrNotFound is returned when the requested event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned on an insert that collides with an
	// existing event id or an existing (launch, sequence) pair.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

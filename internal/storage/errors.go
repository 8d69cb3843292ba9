// Package storage holds the error vocabulary shared by the ledger storage backends.
package storage

import "errors"

var (
	// ErrNotFound is returned when a looked-up record does not exist, or when a
	// write references a parent record that does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("storage: duplicate record")

	// ErrIdempotencyKeyUsed is returned when an idempotency key is registered twice.
	ErrIdempotencyKeyUsed = errors.New("storage: idempotency key already registered")
)

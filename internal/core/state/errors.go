package state

import "errors"

var (
	// ErrExists is returned when inserting a record whose ID is taken.
	ErrExists = errors.New("state: record already exists")
	// ErrNotFound is returned for lookups and updates of absent records.
	ErrNotFound = errors.New("state: record not found")
	// ErrInvalidCount is returned for non-positive ID allocations.
	ErrInvalidCount = errors.New("state: id count must be positive")
	// ErrUnknownBackend is returned for backends other than memory and
	// mongo.
	ErrUnknownBackend = errors.New("state: unknown backend")
)

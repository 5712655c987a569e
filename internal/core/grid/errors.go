package grid

import "errors"

var (
	// ErrInvalidGrid marks a bad name or granularity.
	ErrInvalidGrid = errors.New("grid: invalid grid")
	// ErrExists marks a duplicate grid definition.
	ErrExists = errors.New("grid: already exists")
	// ErrNotFound marks a lookup of an undefined grid.
	ErrNotFound = errors.New("grid: not found")
)

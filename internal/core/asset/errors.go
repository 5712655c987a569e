package asset

import "errors"

var (
	// ErrUnknownFragType marks a fragment type outside RAW/DAE/NONE.
	ErrUnknownFragType = errors.New("asset: unknown fragment type")
	// ErrInvalidFragment marks a fragment that fails validation.
	ErrInvalidFragment = errors.New("asset: invalid fragment")
	// ErrExists is returned when adding a template or instance that is
	// already present.
	ErrExists = errors.New("asset: already exists")
	// ErrNotFound is returned for lookups of absent templates, instances
	// or files.
	ErrNotFound = errors.New("asset: not found")
)

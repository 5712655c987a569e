package constraint

import "errors"

var (
	// ErrUnknownType marks a constraint type this package does not know.
	ErrUnknownType = errors.New("constraint: unknown type")
	// ErrInvalidConstraint marks a record that fails validation.
	ErrInvalidConstraint = errors.New("constraint: invalid record")
)

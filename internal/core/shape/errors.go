package shape

import "errors"

var (
	ErrUnknownType  = errors.New("unknown shape type")
	ErrTypeMismatch = errors.New("shape parameters do not match type")
	ErrInvalidShape = errors.New("invalid shape descriptor")
)

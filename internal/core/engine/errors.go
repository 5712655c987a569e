package engine

import "errors"

var (
	ErrUnknownEngine    = errors.New("unknown engine backend")
	ErrUnsupportedShape = errors.New("shape type not supported by backend")
	ErrInvalidStep      = errors.New("invalid step parameters")
)

package body

import "errors"

var (
	ErrInvalidState    = errors.New("invalid body state")
	ErrInvalidOverride = errors.New("invalid body state override")
)

package parts

import "errors"

var (
	ErrInvalidPart = errors.New("invalid part definition")
	ErrUnknownPart = errors.New("unknown part id")
)

package template

import "errors"

// ErrInvalidTemplate marks a template that fails normalisation.
var ErrInvalidTemplate = errors.New("template: invalid template")

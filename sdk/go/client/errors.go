package client

import (
	"errors"
	"fmt"
)

// Client-specific errors
var (
	ErrClientClosed  = errors.New("client is closed")
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// CommandError is a command the server answered but refused.
type CommandError struct {
	Cmd string
	Msg string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cmd, e.Msg)
}

// AsCommandError unwraps a CommandError from err, if one is there.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

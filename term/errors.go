// Package term implements the terminal channel, the line processor,
// and the command/interactive session drivers.
package term

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned by Run for blank or whitespace-only
// commands, before any network activity.
var ErrEmptyCommand = errors.New("command is empty")

// TransportError is a fatal channel-level failure: a non-success
// terminal-create response or a websocket error. Never retried; the
// caller must open a fresh channel.
type TransportError struct {
	// Op is the failing operation ("create terminal", "dial", "send", "read").
	Op  string
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if the error is a channel transport failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

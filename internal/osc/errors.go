package osc

import "errors"

var (
	// ErrSendFailed is returned when a message could not be delivered after
	// all attempts.
	ErrSendFailed = errors.New("osc: send failed")

	// ErrArity is returned when an argument list does not split into whole groups.
	ErrArity = errors.New("osc: argument count is not a multiple of the group size")

	// ErrArgumentType is returned when an argument has an unexpected type.
	ErrArgumentType = errors.New("osc: unexpected argument type")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("osc: server already started")
)

package midi

import "errors"

// Domain errors for the midi package.
var (
	// ErrDeviceDetached is returned by channel operations on a device that a
	// later Sync no longer saw.
	ErrDeviceDetached = errors.New("midi: device detached")

	// ErrEnumerationTimeout is returned when the OS does not answer a port
	// enumeration in time. CoreMIDI is known to hang.
	ErrEnumerationTimeout = errors.New("midi: port enumeration timed out")

	// ErrChannelOutOfRange is returned for channel numbers outside 0..15.
	ErrChannelOutOfRange = errors.New("midi: channel out of range")

	// ErrPortNotFound is returned when no port matches a requested name.
	ErrPortNotFound = errors.New("midi: port not found")
)

package daw

import "errors"

// Domain errors shared by the DAW drivers.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, daw.ErrNotFound) {
//	    // the DAW referred to an entity we have not been told about
//	}
var (
	// ErrNotFound is returned when an update names an entity that is not resident.
	ErrNotFound = errors.New("daw: not found")

	// ErrUnresolvedRouting is reported when a routing cannot be mapped to a
	// device channel. The entity's output is left unbound.
	ErrUnresolvedRouting = errors.New("daw: unresolved routing")

	// ErrUnknownFlavor is returned by the Factory for an unregistered flavor.
	ErrUnknownFlavor = errors.New("daw: unknown flavor")

	// ErrMissingDependency is returned by driver constructors.
	ErrMissingDependency = errors.New("daw: missing dependency")
)

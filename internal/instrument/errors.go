package instrument

import "errors"

// Domain errors for the instrument package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, instrument.ErrClosed) {
//	    // instrument was closed, reconnect or drop it
//	}
var (
	// ErrDuplicateName is returned when registering a parameter or submodule
	// under a name that is already taken on the same instrument.
	ErrDuplicateName = errors.New("instrument: duplicate name")

	// ErrNameTaken is returned when a second live instrument tries to claim
	// a name already held in the registry.
	ErrNameTaken = errors.New("instrument: name already registered")

	// ErrClosed is returned when an operation is attempted after Close().
	ErrClosed = errors.New("instrument: closed")

	// ErrCommunication is returned when a transport write or read fails.
	// The wrapped message carries the instrument name and the command.
	ErrCommunication = errors.New("instrument: communication failure")

	// ErrNotGettable is returned when Get is called on a parameter that has
	// no get source. Its cache is authoritative; use GetLatest.
	ErrNotGettable = errors.New("instrument: parameter is not gettable")

	// ErrNotSettable is returned when Set is called on a get-only parameter.
	ErrNotSettable = errors.New("instrument: parameter is not settable")

	// ErrInvalidConfig is returned when constructor options or a parameter
	// configuration are malformed.
	ErrInvalidConfig = errors.New("instrument: invalid configuration")

	// ErrNotFound is returned when an instrument, parameter, submodule,
	// channel, or stored snapshot does not exist.
	ErrNotFound = errors.New("instrument: not found")
)

package linker

import "errors"

// Failure taxonomy for the loader. Engine functions wrap one of these so
// callers can classify with errors.Is while the facade stores the formatted
// message in its last-error slot.
var (
	// ErrBadFormat reports a malformed or unsupported image: bad magic,
	// wrong class/endianness/machine, no loadable segments, or missing
	// required dynamic tables.
	ErrBadFormat = errors.New("minidl: bad image format")

	// ErrMapFailure reports a reservation or overlay mapping refused by
	// the host.
	ErrMapFailure = errors.New("minidl: mapping failed")

	// ErrNotFound reports a symbol lookup miss.
	ErrNotFound = errors.New("minidl: symbol not found")

	// ErrNotSupported reports a recognized but unimplemented operation.
	ErrNotSupported = errors.New("minidl: not supported")

	// ErrInternal reports an allocation failure or invariant violation.
	ErrInternal = errors.New("minidl: internal error")
)

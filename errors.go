package memsafe

// Error is the type of the sentinel errors reported by this module. Errors
// originating from the operating system are returned wrapped, with the OS
// error as the cause.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrInvalidLength is returned when a secret is constructed with a
	// length of zero or less. No memory is allocated in that case.
	ErrInvalidLength Error = "invalid secret length"

	// ErrClosed is returned when an operation is attempted on a secret that
	// has already been destroyed.
	ErrClosed Error = "secret has already been destroyed"

	// ErrReadHeld is returned when exclusive access is requested while one
	// or more read guards are outstanding.
	ErrReadHeld Error = "secret has an outstanding read guard"

	// ErrWriteHeld is returned when access is requested while a write guard
	// is outstanding.
	ErrWriteHeld Error = "secret has an outstanding write guard"

	// ErrHandleConsumed is returned by the typestate package when a handle
	// is used after a state transition has consumed it.
	ErrHandleConsumed Error = "handle has been consumed by a state transition"
)

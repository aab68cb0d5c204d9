package memsafe

import (
	"io"

	"github.com/rcrowley/go-metrics"
)

var (
	// AllocCounter is used to track cumulative secret allocations.
	//
	// AllocCounter increases as secrets are allocated, but unlike
	// InUseCounter, it does not decrease as secrets are destroyed.
	AllocCounter = metrics.GetOrRegisterCounter("secret.allocated", nil)

	// InUseCounter is used to track the number of secrets currently in use.
	//
	// InUseCounter increases as secrets are allocated and decreases as
	// secrets are destroyed.
	InUseCounter = metrics.GetOrRegisterCounter("secret.inuse", nil)
)

// Secret contains sensitive data held in protected page(s) in memory.
// Always destroy a secret after use to avoid leaking the pages it pins.
//
// Secret is implemented by the guarded package. The typestate package
// provides an alternative surface over the same protected memory where the
// access state is part of each handle's type; its handles intentionally do
// not satisfy this interface.
type Secret interface {
	// WithBytes makes the underlying bytes readable and passes them to the
	// function action. It returns the error returned by action.
	//
	// Calling WithBytes on a closed secret is an error.
	//
	// In the event of multiple errors, e.g., action returns a non-nil error
	// and WithBytes encounters an error when restoring the protection state
	// of the underlying byte slice, the errors will be wrapped in a single
	// error and the new composite error is returned.
	//
	// A reference MUST not be kept to the bytes passed to the function as the
	// underlying array will no longer be readable after the function exits.
	WithBytes(action func([]byte) error) error

	// WithBytesFunc makes the underlying bytes readable and passes them to
	// the function action. It returns the byte slice returned by action.
	//
	// See the WithBytes documentation for details on how errors are handled.
	//
	// A reference MUST not be kept to the bytes passed to the function as the
	// underlying array will no longer be readable after the function exits.
	WithBytesFunc(action func([]byte) ([]byte, error)) ([]byte, error)

	// IsClosed returns true if the underlying data container has already been
	// closed.
	IsClosed() bool

	// Close closes the data container and frees any associated memory.
	Close() error

	// NewReader returns a new io.Reader reading from the underlying Secret.
	NewReader() io.Reader
}

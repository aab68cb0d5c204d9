// Package typestate implements the compile-time-checked secret API: each
// handle's type names the access its holder currently has, and byte access
// only exists on the handle kinds that permit it. Holding a *NoAccess, there
// is no Bytes method to call; the wrong access does not compile.
//
// State transitions consume the receiver and return a handle of the new
// kind. Go cannot enforce the consumption at compile time the way an
// ownership-transfer type system would, so a consumed handle is invalidated
// and every later use fails with memsafe.ErrHandleConsumed. At most one
// live handle exists per secret at any time.
//
// Handles belong to a single owner. The package performs no internal
// locking; sharing a handle across goroutines requires external
// synchronization.
package typestate

import (
	"io"
	"time"

	"github.com/awnumar/memguard/core"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/memsafe/memsafe"
	"github.com/memsafe/memsafe/internal/memcall"
	"github.com/memsafe/memsafe/internal/region"
	"github.com/memsafe/memsafe/internal/secrets"
)

// AllocTimer is used to record the time taken to allocate a secret.
var AllocTimer = metrics.GetOrRegisterTimer("secret.typestate.alloctimer", nil)

// handle carries the state shared by all three handle kinds. Each kind
// wraps its own handle value; a transition invalidates the old one and
// wraps the region in a fresh one.
type handle struct {
	region   *region.Region
	consumed bool
}

// guard rejects use of a handle that has been consumed by a transition or
// whose secret has been destroyed.
func (h *handle) guard() error {
	if h.consumed {
		return errors.WithStack(memsafe.ErrHandleConsumed)
	}

	if h.region.IsClosed() {
		return errors.WithStack(memsafe.ErrClosed)
	}

	return nil
}

// Len returns the secret's length in bytes.
func (h *handle) Len() int {
	return h.region.Len()
}

// Pinned returns true if the secret's pages are locked into physical
// memory.
func (h *handle) Pinned() bool {
	return h.region.Pinned()
}

// PinError returns the error recorded when pinning the secret's pages was
// attempted, or nil.
func (h *handle) PinError() error {
	return h.region.PinError()
}

// Destroy wipes and releases the secret: the pages are made writable,
// zeroed, unpinned, and released, in that order. The handle is unusable
// afterwards.
func (h *handle) Destroy() error {
	if err := h.guard(); err != nil {
		return err
	}

	err := h.region.Close()

	memsafe.InUseCounter.Dec(1)

	return err
}

// NoAccess is a handle to a secret whose pages can be neither read nor
// written. This is the rest state; it exposes no byte access at all.
type NoAccess struct {
	*handle
}

// ReadOnly is a handle to a secret whose pages are readable.
type ReadOnly struct {
	*handle
}

// ReadWrite is a handle to a secret whose pages are readable and writable.
type ReadWrite struct {
	*handle
}

// New copies b into a freshly allocated secret and returns a NoAccess
// handle to it. The source slice is wiped.
func New(b []byte) (*NoAccess, error) {
	return newHandle(b, memcall.Default)
}

func newHandle(b []byte, mc memcall.Interface) (*NoAccess, error) {
	defer AllocTimer.UpdateSince(time.Now())

	r, err := region.New(len(b), mc)
	if err != nil {
		return nil, err
	}

	if err := writeInitial(r, b); err != nil {
		// We intentionally ignore the errors from the cleanup beyond wrapping
		// them onto the reason we got here.
		if err2 := r.Close(); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}

		return nil, err
	}

	memsafe.AllocCounter.Inc(1)
	memsafe.InUseCounter.Inc(1)

	return &NoAccess{handle: &handle{region: r}}, nil
}

// writeInitial copies the payload in while the region is briefly writable
// and restores the no-access rest state.
func writeInitial(r *region.Region, b []byte) error {
	if err := r.ToReadWrite(); err != nil {
		return err
	}

	// copy b into the region and wipe the source
	r.CopyIn(b)
	core.Wipe(b)

	return r.ToNoAccess()
}

// transition moves h's region to the state selected by change and hands the
// region to a fresh handle. On failure h stays live and usable; the caller
// keeps it.
func (h *handle) transition(change func() error, msg string) (*handle, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	if err := change(); err != nil {
		// Shouldn't happen but return the err if it does
		return nil, errors.WithMessage(err, msg)
	}

	h.consumed = true

	return &handle{region: h.region}, nil
}

// ReadOnly makes the secret readable, consuming this handle.
func (h *NoAccess) ReadOnly() (*ReadOnly, error) {
	inner, err := h.transition(h.region.ToReadOnly, "unable to mark memory as read-only")
	if err != nil {
		return nil, err
	}

	return &ReadOnly{handle: inner}, nil
}

// ReadWrite makes the secret writable, consuming this handle.
func (h *NoAccess) ReadWrite() (*ReadWrite, error) {
	inner, err := h.transition(h.region.ToReadWrite, "unable to mark memory as read-write")
	if err != nil {
		return nil, err
	}

	return &ReadWrite{handle: inner}, nil
}

// NoAccess returns the handle unchanged. The secret is already
// inaccessible.
func (h *NoAccess) NoAccess() (*NoAccess, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	return h, nil
}

// NoAccess revokes all access to the secret, consuming this handle.
func (h *ReadOnly) NoAccess() (*NoAccess, error) {
	inner, err := h.transition(h.region.ToNoAccess, "unable to mark memory as no-access")
	if err != nil {
		return nil, err
	}

	return &NoAccess{handle: inner}, nil
}

// ReadWrite makes the secret writable, consuming this handle.
func (h *ReadOnly) ReadWrite() (*ReadWrite, error) {
	inner, err := h.transition(h.region.ToReadWrite, "unable to mark memory as read-write")
	if err != nil {
		return nil, err
	}

	return &ReadWrite{handle: inner}, nil
}

// ReadOnly returns the handle unchanged. The secret is already readable.
func (h *ReadOnly) ReadOnly() (*ReadOnly, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	return h, nil
}

// NoAccess revokes all access to the secret, consuming this handle.
func (h *ReadWrite) NoAccess() (*NoAccess, error) {
	inner, err := h.transition(h.region.ToNoAccess, "unable to mark memory as no-access")
	if err != nil {
		return nil, err
	}

	return &NoAccess{handle: inner}, nil
}

// ReadOnly drops write access, consuming this handle.
func (h *ReadWrite) ReadOnly() (*ReadOnly, error) {
	inner, err := h.transition(h.region.ToReadOnly, "unable to mark memory as read-only")
	if err != nil {
		return nil, err
	}

	return &ReadOnly{handle: inner}, nil
}

// ReadWrite returns the handle unchanged. The secret is already writable.
func (h *ReadWrite) ReadWrite() (*ReadWrite, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	return h, nil
}

// Bytes returns the readable view of the secret. The slice is only valid
// while this handle is live; a reference MUST not be kept across a
// transition or Destroy.
func (h *ReadOnly) Bytes() ([]byte, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	return h.region.Bytes(), nil
}

// WithBytes passes the readable view of the secret to action. It exists so
// the shared reader machinery can be used; the handle is already readable,
// so no protection change is involved.
func (h *ReadOnly) WithBytes(action func([]byte) error) error {
	if err := h.guard(); err != nil {
		return err
	}

	return action(h.region.Bytes())
}

// NewReader returns a new io.Reader capable of reading from h.
func (h *ReadOnly) NewReader() io.Reader {
	return secrets.NewReader(h)
}

// Bytes returns the writable view of the secret. The slice is only valid
// while this handle is live; a reference MUST not be kept across a
// transition or Destroy.
func (h *ReadWrite) Bytes() ([]byte, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}

	return h.region.Bytes(), nil
}

// Set copies b into the front of the secret using a constant-time copy. The
// source slice is not wiped; that remains the caller's responsibility.
func (h *ReadWrite) Set(b []byte) error {
	if err := h.guard(); err != nil {
		return err
	}

	if len(b) > h.region.Len() {
		return errors.WithStack(memsafe.ErrInvalidLength)
	}

	h.region.CopyIn(b)

	return nil
}

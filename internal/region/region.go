// Package region implements the secure memory region both public API
// surfaces are built on: a single page-locked allocation with a tracked
// protection state and a guaranteed wipe-before-release teardown.
package region

import (
	"crypto/subtle"

	"github.com/awnumar/memguard/core"
	"github.com/pkg/errors"

	"github.com/memsafe/memsafe"
	"github.com/memsafe/memsafe/internal/memcall"
)

// Region owns one allocated block of protected memory. The recorded
// protection state always matches the protection actually applied to the
// block's pages; transitions that fail leave both unchanged.
//
// A Region is owned by a single caller at a time and performs no internal
// locking.
type Region struct {
	bytes  []byte
	mc     memcall.Interface
	state  memcall.MemoryProtectionFlag
	pinned bool
	pinErr error
	closed bool
}

// New allocates a region of the given size and brings it to the no-access
// rest state.
//
// A failure to pin the region's pages is recorded rather than returned:
// systems without mlock rights still get page protection and wiping, just
// not the no-swap guarantee. Callers that require pinning must check
// Pinned.
func New(size int, mc memcall.Interface) (*Region, error) {
	if size < 1 {
		return nil, errors.WithStack(memsafe.ErrInvalidLength)
	}

	b, err := mc.Alloc(size)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to allocate secure region")
	}

	// A fresh allocation is readable and writable on every platform.
	r := &Region{
		bytes: b,
		mc:    mc,
		state: memcall.ReadWrite(),
	}

	if err := mc.Lock(b); err != nil {
		r.pinErr = errors.WithMessage(err, "unable to lock secure region")
	} else {
		r.pinned = true
	}

	if err := r.ToNoAccess(); err != nil {
		// The rest state is not optional. Tear the region down rather than
		// hand out one that is readable at rest.
		if err2 := r.Close(); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}

		return nil, err
	}

	// Best-effort: a failure here leaves the region usable, only visible to
	// crash dump tooling.
	_ = mc.DontDump(b)

	return r, nil
}

// ToReadOnly makes the region readable and records the new state.
func (r *Region) ToReadOnly() error {
	return r.transition(memcall.ReadOnly())
}

// ToReadWrite makes the region readable and writable and records the new
// state.
func (r *Region) ToReadWrite() error {
	return r.transition(memcall.ReadWrite())
}

// ToNoAccess revokes all access to the region and records the new state.
func (r *Region) ToNoAccess() error {
	return r.transition(memcall.NoAccess())
}

func (r *Region) transition(mpf memcall.MemoryProtectionFlag) error {
	if r.closed {
		return errors.WithStack(memsafe.ErrClosed)
	}

	// Requesting the current state is a no-op.
	if r.state == mpf {
		return nil
	}

	if err := r.mc.Protect(r.bytes, mpf); err != nil {
		return err
	}

	r.state = mpf

	return nil
}

// Bytes returns the raw view of the region's memory. It is only valid to
// touch the returned slice while the region is in a state permitting it;
// callers reach this through the access gates in the API packages, never
// directly.
func (r *Region) Bytes() []byte {
	return r.bytes
}

// CopyIn copies b into the front of the region using a constant-time copy.
// The region must be writable.
func (r *Region) CopyIn(b []byte) {
	subtle.ConstantTimeCopy(1, r.bytes[:len(b)], b)
}

// Len returns the region's length in bytes.
func (r *Region) Len() int {
	return len(r.bytes)
}

// State returns the recorded protection state.
func (r *Region) State() memcall.MemoryProtectionFlag {
	return r.state
}

// Pinned returns true if the region's pages are locked into physical
// memory.
func (r *Region) Pinned() bool {
	return r.pinned
}

// PinError returns the error recorded when pinning was attempted, or nil.
func (r *Region) PinError() error {
	return r.pinErr
}

// IsClosed returns true once the region has been destroyed.
func (r *Region) IsClosed() bool {
	return r.closed
}

// Close wipes and releases the region. The sequence is fixed: make the
// pages writable, zero them, unpin, unmap. Every step runs even if an
// earlier one fails; the zeroing happens strictly before the address space
// goes back to the OS. Close is idempotent and the region is unusable
// afterwards.
func (r *Region) Close() error {
	if r.closed {
		return nil
	}

	err := r.mc.Protect(r.bytes, memcall.ReadWrite())

	// Wipe the memory.
	core.Wipe(r.bytes)

	if r.pinned {
		if err2 := memcall.Clean(r.mc, r.bytes); err2 != nil {
			err = combine(err, err2)
		}
	} else {
		// Nothing to unpin; just release the block.
		if err2 := r.mc.Free(r.bytes); err2 != nil {
			err = combine(err, err2)
		}
	}

	r.bytes = nil
	r.closed = true

	return err
}

func combine(err, err2 error) error {
	if err == nil {
		return err2
	}

	return errors.Wrap(err, err2.Error())
}

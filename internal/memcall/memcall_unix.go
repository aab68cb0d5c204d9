//go:build unix
// +build unix

package memcall

import (
	"unsafe"

	"github.com/awnumar/memcall"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Default is the backend bound to the memory primitives of the host OS.
var Default Interface = mmapBackend{}

// mmapBackend implements Interface on top of anonymous private mappings.
type mmapBackend struct{}

// Alloc reserves and commits size bytes of anonymous, process-private memory.
// The mapping is rounded up to the page size; the returned slice views only
// the requested length.
func (mmapBackend) Alloc(size int) ([]byte, error) {
	if size < 1 {
		return nil, errors.WithStack(errInvalidAlloc)
	}

	b, err := unix.Mmap(-1, 0, roundToPageSize(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}

	return b[:size], nil
}

// Protect sets the page protection of b's mapping. Safe to call repeatedly
// with the same flag.
func (mmapBackend) Protect(b []byte, mpf MemoryProtectionFlag) error {
	prot, err := protFlag(mpf)
	if err != nil {
		return err
	}

	if err := unix.Mprotect(pages(b), prot); err != nil {
		return errors.Wrap(err, "mprotect failed")
	}

	return nil
}

// Lock pins b's pages into physical memory so they are never written to
// swap. May fail when the locked-memory rlimit is exhausted.
func (mmapBackend) Lock(b []byte) error {
	if err := unix.Mlock(pages(b)); err != nil {
		return errors.Wrap(err, "mlock failed")
	}

	return nil
}

// Unlock releases the pin on b's pages.
func (mmapBackend) Unlock(b []byte) error {
	if err := unix.Munlock(pages(b)); err != nil {
		return errors.Wrap(err, "munlock failed")
	}

	return nil
}

// Free returns b's mapping to the OS. Callers must wipe b first.
func (mmapBackend) Free(b []byte) error {
	if err := unix.Munmap(pages(b)); err != nil {
		return errors.Wrap(err, "munmap failed")
	}

	return nil
}

// protFlag maps a protection flag to the PROT_* bits mprotect expects.
func protFlag(mpf MemoryProtectionFlag) (int, error) {
	switch mpf {
	case memcall.NoAccess():
		return unix.PROT_NONE, nil
	case memcall.ReadOnly():
		return unix.PROT_READ, nil
	case memcall.ReadWrite():
		return unix.PROT_READ | unix.PROT_WRITE, nil
	}

	return 0, errors.WithStack(errUnknownFlag)
}

// pages rebuilds the full page-aligned mapping underlying b. Alloc hands out
// a view of the requested length only, but the OS calls operate on whole
// pages.
func pages(b []byte) []byte {
	return unsafe.Slice(&b[0], roundToPageSize(len(b)))
}

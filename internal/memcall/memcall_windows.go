//go:build windows
// +build windows

package memcall

import (
	"unsafe"

	"github.com/awnumar/memcall"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Default is the backend bound to the memory primitives of the host OS.
var Default Interface = virtualAllocBackend{}

// virtualAllocBackend implements Interface on top of the VirtualAlloc family.
type virtualAllocBackend struct{}

// Alloc reserves and commits size bytes of process-private memory. The
// allocation is rounded up to the page size; the returned slice views only
// the requested length.
func (virtualAllocBackend) Alloc(size int) ([]byte, error) {
	if size < 1 {
		return nil, errors.WithStack(errInvalidAlloc)
	}

	ptr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrap(err, "VirtualAlloc failed")
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size), nil
}

// Protect sets the page protection of b's allocation. Safe to call
// repeatedly with the same flag.
//
// VirtualLock cannot keep PAGE_NOACCESS pages resident, so the no-access
// flag maps to PAGE_READONLY. Read-only is the lowest privilege a locked
// region can hold on this platform.
func (virtualAllocBackend) Protect(b []byte, mpf MemoryProtectionFlag) error {
	prot, err := protFlag(mpf)
	if err != nil {
		return err
	}

	var oldProtect uint32
	if err := windows.VirtualProtect(base(b), uintptr(len(b)), prot, &oldProtect); err != nil {
		return errors.Wrap(err, "VirtualProtect failed")
	}

	return nil
}

// Lock pins b's pages into physical memory so they are never written to the
// page file.
func (virtualAllocBackend) Lock(b []byte) error {
	if err := windows.VirtualLock(base(b), uintptr(len(b))); err != nil {
		return errors.Wrap(err, "VirtualLock failed")
	}

	return nil
}

// Unlock releases the pin on b's pages.
func (virtualAllocBackend) Unlock(b []byte) error {
	if err := windows.VirtualUnlock(base(b), uintptr(len(b))); err != nil {
		return errors.Wrap(err, "VirtualUnlock failed")
	}

	return nil
}

// DontDump is a no-op: Windows has no per-region dump exclusion.
func (virtualAllocBackend) DontDump(b []byte) error {
	return nil
}

// Free returns b's allocation to the OS. Callers must wipe b first.
func (virtualAllocBackend) Free(b []byte) error {
	// MEM_RELEASE requires a size of zero and the base of the allocation.
	if err := windows.VirtualFree(base(b), 0, windows.MEM_RELEASE); err != nil {
		return errors.Wrap(err, "VirtualFree failed")
	}

	return nil
}

// protFlag maps a protection flag to the PAGE_* constant VirtualProtect
// expects.
func protFlag(mpf MemoryProtectionFlag) (uint32, error) {
	switch mpf {
	case memcall.NoAccess():
		return windows.PAGE_READONLY, nil
	case memcall.ReadOnly():
		return windows.PAGE_READONLY, nil
	case memcall.ReadWrite():
		return windows.PAGE_READWRITE, nil
	}

	return 0, errors.WithStack(errUnknownFlag)
}

func base(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

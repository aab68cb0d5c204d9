// Package memcall binds the low-level memory primitives of the host OS.
// Exactly one platform implementation is compiled in; the package does not
// build on platforms with neither a POSIX-like nor a Windows-like memory
// API.
package memcall

type Allocator interface {
	Alloc(size int) ([]byte, error)
}

type Freer interface {
	Free([]byte) error
}

type Protector interface {
	Protect([]byte, MemoryProtectionFlag) error
}

type Locker interface {
	Lock([]byte) error
}

type Unlocker interface {
	Unlock([]byte) error
}

type DumpExcluder interface {
	// DontDump advises the OS to omit the region from core dumps. It is
	// best-effort; callers must not escalate a failure.
	DontDump([]byte) error
}

// Interface provides an interface for wrapping the OS memory calls.
type Interface interface {
	Allocator
	Freer
	Protector
	Locker
	Unlocker
	DumpExcluder
}

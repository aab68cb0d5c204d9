//go:build nobenchlock
// +build nobenchlock

package guarded

import (
	"log"

	"github.com/memsafe/memsafe/internal/memcall"
)

// nobenchlock is a compile-time flag to disable memory locking for benchmarking.
// WARNING: This must NEVER be used in production as it defeats the security
// purpose of protected memory. Only use with the nobenchlock build tag.
func init() {
	log.Println("WARNING: Memory locking disabled for benchmarking - DO NOT USE IN PRODUCTION")
}

// nolockBackend passes everything through except the pinning calls.
type nolockBackend struct {
	memcall.Interface
}

func (nolockBackend) Lock(b []byte) error {
	// No-op for benchmarking
	return nil
}

func (nolockBackend) Unlock(b []byte) error {
	// No-op for benchmarking
	return nil
}

// defaultBackend returns the backend used when a factory has none injected,
// with pinning disabled for benchmarks.
func defaultBackend() memcall.Interface {
	return nolockBackend{memcall.Default}
}

//go:build !nobenchlock
// +build !nobenchlock

package guarded

import "github.com/memsafe/memsafe/internal/memcall"

// defaultBackend returns the backend used when a factory has none injected.
// This is the default implementation used in production.
func defaultBackend() memcall.Interface {
	return memcall.Default
}

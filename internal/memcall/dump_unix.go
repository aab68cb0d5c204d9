//go:build unix && !linux
// +build unix,!linux

package memcall

import (
	"sync"

	"github.com/awnumar/memcall"
	"github.com/pkg/errors"
)

var disableDumpsOnce sync.Once

// DontDump has no per-region equivalent outside Linux, so the first call
// disables core dumps for the whole process instead.
func (mmapBackend) DontDump(b []byte) error {
	var err error

	disableDumpsOnce.Do(func() {
		if err2 := memcall.DisableCoreDumps(); err2 != nil {
			err = errors.Wrap(err2, "unable to disable core dumps")
		}
	})

	return err
}

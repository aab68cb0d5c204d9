//go:build linux
// +build linux

package memcall

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DontDump excludes b's pages from core dumps via MADV_DONTDUMP.
func (mmapBackend) DontDump(b []byte) error {
	if err := unix.Madvise(pages(b), unix.MADV_DONTDUMP); err != nil {
		return errors.Wrap(err, "madvise failed")
	}

	return nil
}

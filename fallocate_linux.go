//go:build linux

package linesort

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves disk blocks up front so a full disk fails before
// any data is written. Mode 0 also extends the file size to size.
func fallocateFile(file *os.File, size int64) error {
	err := unix.Fallocate(int(file.Fd()), 0, 0, size)
	if err == nil || errors.Is(err, unix.ENOSPC) {
		return err
	}
	// Filesystem without fallocate support (e.g., NFS, some FUSE mounts)
	return unix.Ftruncate(int(file.Fd()), size)
}

//go:build darwin

package linesort

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves disk blocks up front so a full disk fails before
// any data is written. On macOS, uses fcntl F_PREALLOCATE.
func fallocateFile(file *os.File, size int64) error {
	// F_ALLOCATEALL: allocate all requested space or fail
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Offset:  0,
		Length:  size,
	}
	if err := unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst); errors.Is(err, unix.ENOSPC) {
		return err
	}
	// F_PREALLOCATE only reserves space; the size must be set separately
	return unix.Ftruncate(int(file.Fd()), size)
}

//go:build linux

package linesort

import "golang.org/x/sys/unix"

// adviseSequential hints that a mapped region will be scanned front to back,
// enabling aggressive readahead.
// Best-effort: errors are silently ignored.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}

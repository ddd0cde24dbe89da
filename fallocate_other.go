//go:build !linux && !darwin

package linesort

import "os"

// fallocateFile sizes the file up front. Without a native preallocation call
// this may not reserve disk blocks, so a full disk can still surface later
// as a write error.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}

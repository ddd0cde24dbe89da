//go:build windows

package linesort

// syncDir is a no-op on Windows, where directories cannot be opened for fsync.
func syncDir(dir string) error {
	return nil
}

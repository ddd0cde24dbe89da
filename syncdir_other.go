//go:build !windows

package linesort

import "os"

// syncDir fsyncs a directory so a rename into it survives a crash.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

package linesort

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sorterrors "github.com/tamirms/linesort/errors"
)

// outputPerm is the mode of a published output file.
const outputPerm = 0o644

// outputFile stages merged output in a temp file beside its destination and
// publishes it with a rename, so an aborted run never leaves a truncated or
// unsorted file at the destination.
type outputFile struct {
	dest    string
	file    *os.File
	written int64
}

// createOutput opens the staging file and pre-allocates size bytes.
func createOutput(dest string, size int64) (*outputFile, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), ".linesort-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging file: %w", sorterrors.ErrOutputWrite, err)
	}
	o := &outputFile{dest: dest, file: f}
	if size > 0 {
		if err := fallocateFile(f, size); err != nil {
			primaryErr := fmt.Errorf("%w: pre-allocate %d bytes: %w", sorterrors.ErrOutputWrite, size, err)
			return nil, errors.Join(primaryErr, o.abort())
		}
	}
	return o, nil
}

// Write appends p to the staging file.
func (o *outputFile) Write(p []byte) (int, error) {
	n, err := o.file.Write(p)
	o.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: %w", sorterrors.ErrOutputWrite, err)
	}
	return n, nil
}

// commit finalizes the staging file and renames it over the destination.
// On failure the staging file is removed.
func (o *outputFile) commit() error {
	fail := func(step string, err error, closeFile bool) error {
		primaryErr := fmt.Errorf("%w: %s: %w", sorterrors.ErrOutputWrite, step, err)
		var closeErr error
		if closeFile {
			closeErr = o.file.Close()
		}
		return errors.Join(primaryErr, closeErr, os.Remove(o.file.Name()))
	}

	// Pre-allocation set the file size; drop anything past what was written.
	if err := o.file.Truncate(o.written); err != nil {
		return fail("truncate", err, true)
	}
	if err := o.file.Chmod(outputPerm); err != nil {
		return fail("chmod", err, true)
	}
	if err := o.file.Sync(); err != nil {
		return fail("sync", err, true)
	}
	if err := o.file.Close(); err != nil {
		return fail("close", err, false)
	}
	if err := os.Rename(o.file.Name(), o.dest); err != nil {
		return fail("rename", err, false)
	}
	// Best-effort: persist the rename itself.
	_ = syncDir(filepath.Dir(o.dest))
	return nil
}

// abort discards the staging file.
func (o *outputFile) abort() error {
	closeErr := o.file.Close()
	if err := os.Remove(o.file.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Join(closeErr, err)
	}
	return closeErr
}

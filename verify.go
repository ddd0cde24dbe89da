package linesort

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	sorterrors "github.com/tamirms/linesort/errors"
)

// Verify checks that the file at path is a complete Sort output: every line
// ends with '\n' and lines are in non-decreasing byte order. It returns the
// file's Digest, which equals Stats.Digest of the run that produced it.
//
// The file is memory-mapped read-only and scanned once.
func Verify(path string) (*Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}
	// mmap rejects zero-length mappings
	if stat.Size() == 0 {
		return &Digest{}, nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap output: %w", err)
	}
	adviseSequential(mm)

	d, verifyErr := verifySorted(mm)
	if err := mm.Unmap(); err != nil {
		return nil, errors.Join(verifyErr, fmt.Errorf("unmap output: %w", err))
	}
	return d, verifyErr
}

// verifySorted scans newline-terminated lines in data.
func verifySorted(data []byte) (*Digest, error) {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return nil, sorterrors.ErrMissingTerminator
	}
	var (
		d    Digest
		prev []byte
	)
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		line := data[:i]
		if d.Lines > 0 && bytes.Compare(prev, line) > 0 {
			return nil, fmt.Errorf("%w: line %d sorts before line %d",
				sorterrors.ErrUnsortedOutput, d.Lines+1, d.Lines)
		}
		d.add(line)
		prev = line
		data = data[i+1:]
	}
	return &d, nil
}

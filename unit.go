package linesort

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	sorterrors "github.com/tamirms/linesort/errors"
)

// writeBufferSize is the bufio buffer between a sort task and its unit file.
const writeBufferSize = 1 << 20

var newline = []byte{'\n'}

// unitAllocator hands out collision-free unit identifiers within one run
// directory. It is the only state shared by concurrent sort tasks.
type unitAllocator struct {
	dir  string
	ext  string
	next atomic.Int64
}

func newUnitAllocator(dir string, comp Compression) *unitAllocator {
	return &unitAllocator{dir: dir, ext: comp.extension()}
}

// claim reserves the next identifier and returns it with its file path.
func (a *unitAllocator) claim() (int, string) {
	id := int(a.next.Add(1) - 1)
	return id, filepath.Join(a.dir, fmt.Sprintf("unit-%06d%s", id, a.ext))
}

// sortedUnit is the durable result of sorting one chunk.
//
// File format: every line followed by '\n', optionally wrapped by the run's
// codec. Writing a terminator after the last line keeps a unit holding one
// empty line distinct from an empty unit. lines and checksum describe the
// uncompressed content and are checked when the unit is read back.
type sortedUnit struct {
	id       int
	path     string
	lines    int64
	size     int64  // Uncompressed bytes
	checksum uint64 // xxHash64 of the uncompressed content
}

// writeUnit persists already-sorted lines as a new unit and fills u.
// size must be the exact uncompressed size (sum of len(line)+1).
// On failure the partially written file is removed.
func writeUnit(u *sortedUnit, alloc *unitAllocator, lines [][]byte, size int64, comp Compression) error {
	id, path := alloc.claim()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create unit %d: %w", sorterrors.ErrChunkWrite, id, err)
	}
	fail := func(err error, closeFile bool) error {
		primaryErr := fmt.Errorf("%w: unit %d: %w", sorterrors.ErrChunkWrite, id, err)
		var closeErr error
		if closeFile {
			closeErr = f.Close()
		}
		return errors.Join(primaryErr, closeErr, os.Remove(path))
	}

	// Pre-allocate so a full disk fails here rather than mid-write.
	// Compressed size is unknown up front.
	if comp == CompressionNone && size > 0 {
		if err := fallocateFile(f, size); err != nil {
			return fail(fmt.Errorf("pre-allocate: %w", err), true)
		}
	}

	cw, err := comp.newWriter(f)
	if err != nil {
		return fail(err, true)
	}
	bw := bufio.NewWriterSize(cw, writeBufferSize)
	digest := xxhash.New()
	w := io.MultiWriter(bw, digest)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fail(err, true)
		}
		if _, err := w.Write(newline); err != nil {
			return fail(err, true)
		}
	}
	if err := bw.Flush(); err != nil {
		return fail(err, true)
	}
	if err := cw.Close(); err != nil {
		return fail(fmt.Errorf("close codec: %w", err), true)
	}
	if err := f.Close(); err != nil {
		return fail(err, false)
	}

	u.id = id
	u.path = path
	u.lines = int64(len(lines))
	u.size = size
	u.checksum = digest.Sum64()
	return nil
}

// remove deletes the unit's file. A unit that was never written, or is
// already gone, is not an error.
func (u *sortedUnit) remove() error {
	if u.path == "" {
		return nil
	}
	if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit %d: %w", u.id, err)
	}
	return nil
}

// unitReader reads a unit's lines back in order and verifies the unit's
// line count and checksum once it reaches the end.
type unitReader struct {
	unit   *sortedUnit
	file   *os.File
	dec    io.ReadCloser
	r      *bufio.Reader
	digest *xxhash.Digest
	lines  int64
}

func openUnit(u *sortedUnit, comp Compression) (*unitReader, error) {
	f, err := os.Open(u.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open unit %d: %w", sorterrors.ErrUnitRead, u.id, err)
	}
	fadviseSequential(int(f.Fd()), 0, 0)

	dec, err := comp.newReader(f)
	if err != nil {
		primaryErr := fmt.Errorf("%w: unit %d: %w", sorterrors.ErrUnitRead, u.id, err)
		return nil, errors.Join(primaryErr, f.Close())
	}
	digest := xxhash.New()
	return &unitReader{
		unit:   u,
		file:   f,
		dec:    dec,
		r:      bufio.NewReaderSize(io.TeeReader(dec, digest), readBufferSize),
		digest: digest,
	}, nil
}

// next appends the unit's next line to dst[:0]. It returns io.EOF once the
// unit is exhausted and its contents matched what was written.
func (ur *unitReader) next(dst []byte) ([]byte, error) {
	line, err := readLine(ur.r, dst[:0])
	if err == io.EOF {
		u := ur.unit
		if ur.lines != u.lines {
			return nil, fmt.Errorf("%w: unit %d: read %d lines, wrote %d",
				sorterrors.ErrUnitCorrupt, u.id, ur.lines, u.lines)
		}
		if sum := ur.digest.Sum64(); sum != u.checksum {
			return nil, fmt.Errorf("%w: unit %d: checksum %016x, expected %016x",
				sorterrors.ErrUnitCorrupt, u.id, sum, u.checksum)
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unit %d: %w", sorterrors.ErrUnitRead, ur.unit.id, err)
	}
	ur.lines++
	return line, nil
}

// close releases the codec and file. Idempotent.
func (ur *unitReader) close() error {
	if ur.file == nil {
		return nil
	}
	var errs []error
	if err := ur.dec.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close codec: %w", err))
	}
	if err := ur.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close unit %d: %w", ur.unit.id, err))
	}
	ur.file = nil
	ur.dec = nil
	return errors.Join(errs...)
}

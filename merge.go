package linesort

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	sorterrors "github.com/tamirms/linesort/errors"
)

// maxBatchPrealloc caps the batch buffer reserved up front. Larger batches
// grow through append as lines arrive.
const maxBatchPrealloc = 1 << 20

// batchCapacity guesses 64 bytes per line for the initial batch buffer.
func batchCapacity(batchLines int) int {
	if batchLines > maxBatchPrealloc/64 {
		return maxBatchPrealloc
	}
	return 64 * batchLines
}

// merger buffers merged lines and writes them to out in batches of
// batchLines, so peak memory is independent of the output size.
type merger struct {
	out        io.Writer
	batchLines int
	batch      []byte
	pending    int
	digest     Digest
}

// emit appends one line and its terminator to the batch.
func (m *merger) emit(line []byte) {
	m.batch = append(m.batch, line...)
	m.batch = append(m.batch, '\n')
	m.pending++
	m.digest.add(line)
}

// flush writes the pending batch as a single write.
func (m *merger) flush() error {
	if m.pending == 0 {
		return nil
	}
	if _, err := m.out.Write(m.batch); err != nil {
		return err
	}
	m.batch = m.batch[:0]
	m.pending = 0
	return nil
}

// mergeUnits performs a k-way merge of the units into out and returns the
// digest of everything written. The order of units does not matter.
//
// Each unit is read by one cursor; the cursor with the smallest line is
// chosen through a min-heap. Equal lines from different units are emitted
// lowest unit id first; callers must not rely on any order among equal lines.
// Readers are closed as soon as their unit is exhausted. Units are not
// deleted here.
func mergeUnits(ctx context.Context, units []*sortedUnit, out io.Writer, comp Compression, batchLines int, logger grip.Journaler) (Digest, error) {
	h := newCursorHeap(len(units))
	abort := func(err error) (Digest, error) {
		errs := []error{err}
		for _, c := range h.items {
			errs = append(errs, c.rd.close())
		}
		return Digest{}, errors.Join(errs...)
	}

	for _, u := range units {
		rd, err := openUnit(u, comp)
		if err != nil {
			return abort(err)
		}
		c := &cursor{unit: u, rd: rd}
		more, err := c.advance()
		if err != nil {
			return abort(errors.Join(err, rd.close()))
		}
		if !more {
			if err := rd.close(); err != nil {
				return abort(fmt.Errorf("%w: %w", sorterrors.ErrUnitRead, err))
			}
			continue
		}
		h.push(c)
	}

	m := &merger{
		out:        out,
		batchLines: batchLines,
		batch:      make([]byte, 0, batchCapacity(batchLines)),
	}
	for h.len() > 0 {
		c := h.top()
		m.emit(c.line)
		if m.pending >= m.batchLines {
			if err := m.flush(); err != nil {
				return abort(err)
			}
			if err := ctx.Err(); err != nil {
				return abort(err)
			}
		}

		more, err := c.advance()
		if err != nil {
			return abort(err)
		}
		if more {
			h.fixTop()
			continue
		}

		h.popTop()
		if err := c.rd.close(); err != nil {
			return abort(fmt.Errorf("%w: %w", sorterrors.ErrUnitRead, err))
		}
		logger.Debug(message.Fields{
			"message": "sorted unit exhausted",
			"unit":    c.unit.id,
			"lines":   c.unit.lines,
			"live":    h.len(),
		})
	}

	if err := m.flush(); err != nil {
		return Digest{}, err
	}
	return m.digest, nil
}

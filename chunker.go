package linesort

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	sorterrors "github.com/tamirms/linesort/errors"
)

// readBufferSize is the bufio buffer used for input and unit reads.
// Lines longer than this are still read whole, just in several fragments.
const readBufferSize = 1 << 20

// readLine appends the next line of r to dst, without its '\n'. Only '\n'
// ends a line; any '\r' is line content. A final line without a terminator
// is returned normally; io.EOF is returned only once no bytes remain.
func readLine(r *bufio.Reader, dst []byte) ([]byte, error) {
	start := len(dst)
	for {
		frag, err := r.ReadSlice('\n')
		dst = append(dst, frag...)
		switch err {
		case nil:
			return dst[:len(dst)-1], nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(dst) == start {
				return dst, io.EOF
			}
			return dst, nil
		default:
			return dst, err
		}
	}
}

// chunkPool recycles chunk buffers between the chunker and sort tasks.
// Buffers grow to roughly the chunk size, so reuse avoids repeated large
// allocations once the pipeline is warm.
type chunkPool struct {
	pool sync.Pool
}

func (p *chunkPool) get() []byte {
	if v := p.pool.Get(); v != nil {
		return (*v.(*[]byte))[:0]
	}
	return nil
}

func (p *chunkPool) put(b []byte) {
	if cap(b) == 0 {
		return
	}
	b = b[:0]
	p.pool.Put(&b)
}

// chunker splits an input stream into chunks of whole lines.
//
// Each line is appended to the accumulator followed by a single '\n'. Once
// the accumulator exceeds limit bytes it is emitted as a chunk, so a limit
// smaller than one line yields one line per chunk. The final chunk holds
// whatever remains when the input ends and may be undersized.
//
// A chunker is a lazy, single-pass iterator: next returns chunks in input
// order and io.EOF once the input is exhausted.
type chunker struct {
	r      *bufio.Reader
	limit  int64
	pool   *chunkPool
	digest Digest
	chunks int
	eof    bool
}

func newChunker(r io.Reader, limit int64, pool *chunkPool) *chunker {
	return &chunker{
		r:     bufio.NewReaderSize(r, readBufferSize),
		limit: limit,
		pool:  pool,
	}
}

// next returns the next chunk. Ownership of the returned buffer passes to
// the caller, who may hand it back through the pool.
func (c *chunker) next() ([]byte, error) {
	if c.eof {
		return nil, io.EOF
	}
	buf := c.pool.get()
	for {
		start := len(buf)
		var err error
		buf, err = readLine(c.r, buf)
		if err == io.EOF {
			c.eof = true
			if len(buf) == 0 {
				c.pool.put(buf)
				return nil, io.EOF
			}
			c.chunks++
			return buf, nil
		}
		if err != nil {
			c.pool.put(buf)
			return nil, fmt.Errorf("%w: line %d: %w", sorterrors.ErrInputRead, c.digest.Lines+1, err)
		}
		c.digest.add(buf[start:])
		buf = append(buf, '\n')

		// Size is measured on encoded bytes, terminators included.
		if int64(len(buf)) > c.limit {
			c.chunks++
			return buf, nil
		}
	}
}

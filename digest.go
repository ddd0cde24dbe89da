package linesort

import (
	"bufio"
	"fmt"
	"io"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/zeebo/xxh3"
)

// Digest is an order-independent fingerprint of a multiset of lines.
//
// Sum is the wrapping sum of the xxh3-64 hashes of every line, so two streams
// holding the same lines in any order produce equal digests. Bytes counts each
// line plus one terminator byte.
type Digest struct {
	Lines int64
	Bytes int64
	Sum   uint64
}

// add folds one line (without its terminator) into the digest.
func (d *Digest) add(line []byte) {
	d.Lines++
	d.Bytes += int64(len(line)) + 1
	d.Sum += xxh3.Hash(line)
}

// Equal reports whether two digests describe the same multiset of lines.
func (d Digest) Equal(o Digest) bool {
	return d == o
}

func (d Digest) String() string {
	return fmt.Sprintf("lines=%d bytes=%d sum=%016x", d.Lines, d.Bytes, d.Sum)
}

// DigestReader computes the Digest of every line in r, using the same line
// rules as Sort: only "\n" terminates a line and a final unterminated line
// still counts.
func DigestReader(r io.Reader) (*Digest, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		d    Digest
		line []byte
	)
	for {
		var err error
		line, err = readLine(br, line[:0])
		if err == io.EOF {
			return &d, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sorterrors.ErrInputRead, err)
		}
		d.add(line)
	}
}

package linesort

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mongodb/grip/message"
	sorterrors "github.com/tamirms/linesort/errors"
	"golang.org/x/sync/errgroup"
)

// Stats describes a completed sort.
type Stats struct {
	Lines int64 // Lines sorted
	Bytes int64 // Output size in bytes
	Units int   // Sorted units written and merged

	// Digest is the multiset digest of the input lines. The output has the
	// same digest; compare it with Verify's result to check a file later.
	Digest Digest

	// CleanupErr is set when some sorted units could not be removed after a
	// successful merge. It wraps ErrCleanup; the output is still valid.
	CleanupErr error
}

// Sort reads newline-separated lines from r, sorts them by byte order and
// writes the result to output, replacing any existing file.
//
// Input is cut into chunks of about WithChunkSize bytes. Each chunk is sorted
// in memory and written to a temporary sorted unit, up to WithWorkers chunks
// at a time. Once every unit is written they are merged into output in a
// single k-way pass. Lines end with "\n"; a '\r' before it is kept as line
// content, so sorting the output again leaves it unchanged. The output ends
// with a terminator even when the input's last line lacks one.
//
// The output is published atomically: on any error nothing is written to
// output and the returned error wraps the sentinel of the failed stage
// (ErrInputRead, ErrChunkWrite, ErrUnitRead, ErrUnitCorrupt, ErrOutputWrite
// or ErrDigestMismatch). Temporary units are removed in every case.
func Sort(ctx context.Context, r io.Reader, output string, opts ...SortOption) (*Stats, error) {
	cfg := defaultSortConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(cfg.tempDir, "linesort-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create unit directory: %w", sorterrors.ErrChunkWrite, err)
	}
	p := &pipeline{
		cfg:   cfg,
		dir:   dir,
		alloc: newUnitAllocator(dir, cfg.compression),
	}
	return p.run(ctx, r, output)
}

// SortFile is Sort over the file at input. input and output may be the same
// path; the input is fully read before the output is replaced.
func SortFile(ctx context.Context, input, output string, opts ...SortOption) (*Stats, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sorterrors.ErrInputRead, err)
	}
	defer f.Close()
	fadviseSequential(int(f.Fd()), 0, 0)
	return Sort(ctx, f, output, opts...)
}

// pipeline owns the state of one sort run: its private unit directory, the
// unit id allocator and the list of units in input order.
type pipeline struct {
	cfg   *sortConfig
	dir   string
	alloc *unitAllocator
	pool  chunkPool
	units []*sortedUnit
}

func (p *pipeline) run(ctx context.Context, r io.Reader, output string) (*Stats, error) {
	start := time.Now()
	logger := p.cfg.logger
	logger.Info(message.Fields{
		"message":     "sort started",
		"output":      output,
		"chunk_size":  p.cfg.chunkSize,
		"batch_lines": p.cfg.batchLines,
		"workers":     p.cfg.workers,
		"compression": p.cfg.compression.String(),
		"unit_dir":    p.dir,
	})

	digest, err := p.sortChunks(ctx, r)
	if err != nil {
		return nil, errors.Join(err, p.cleanup())
	}
	sorted := time.Now()

	if err := p.merge(ctx, output, digest); err != nil {
		return nil, errors.Join(err, p.cleanup())
	}

	stats := &Stats{
		Lines:  digest.Lines,
		Bytes:  digest.Bytes,
		Units:  len(p.units),
		Digest: digest,
	}
	if err := p.cleanup(); err != nil {
		stats.CleanupErr = err
		logger.Warning(message.WrapError(err, message.Fields{
			"message":  "sorted unit cleanup failed",
			"unit_dir": p.dir,
			"output":   output,
		}))
	}

	logger.Info(message.Fields{
		"message":       "sort finished",
		"output":        output,
		"lines":         stats.Lines,
		"bytes":         stats.Bytes,
		"units":         stats.Units,
		"sort_secs":     sorted.Sub(start).Seconds(),
		"merge_secs":    time.Since(sorted).Seconds(),
		"duration_secs": time.Since(start).Seconds(),
	})
	return stats, nil
}

// sortChunks feeds chunks from r to sort tasks and waits for all of them.
// Chunking overlaps with sorting; at most cfg.workers tasks run at once,
// which also bounds how far the chunker reads ahead. The first failure
// cancels the remaining tasks.
func (p *pipeline) sortChunks(ctx context.Context, r io.Reader) (Digest, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.workers)

	ck := newChunker(r, p.cfg.chunkSize, &p.pool)
	var readErr error
	for gctx.Err() == nil {
		chunk, err := ck.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}

		u := &sortedUnit{}
		p.units = append(p.units, u)
		g.Go(func() error {
			defer p.pool.put(chunk)
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := sortChunk(u, chunk, p.alloc, p.cfg.compression); err != nil {
				return err
			}
			p.cfg.logger.Debug(message.Fields{
				"message": "sorted unit written",
				"unit":    u.id,
				"lines":   u.lines,
				"bytes":   u.size,
			})
			return nil
		})
	}

	// Join before returning: units must not be touched while tasks run.
	if err := errors.Join(readErr, g.Wait()); err != nil {
		return Digest{}, err
	}
	if err := ctx.Err(); err != nil {
		return Digest{}, err
	}
	return ck.digest, nil
}

// merge merges every unit into a staging file and publishes it at output
// once the merged lines are known to match the input.
func (p *pipeline) merge(ctx context.Context, output string, want Digest) error {
	out, err := createOutput(output, want.Bytes)
	if err != nil {
		return err
	}
	got, err := mergeUnits(ctx, p.units, out, p.cfg.compression, p.cfg.batchLines, p.cfg.logger)
	if err != nil {
		return errors.Join(err, out.abort())
	}
	if !got.Equal(want) {
		primaryErr := fmt.Errorf("%w: input %s, output %s", sorterrors.ErrDigestMismatch, want, got)
		return errors.Join(primaryErr, out.abort())
	}
	return out.commit()
}

// cleanup removes every unit and the run directory. All failures are
// collected; the result wraps ErrCleanup.
func (p *pipeline) cleanup() error {
	var errs []error
	for _, u := range p.units {
		if err := u.remove(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(p.dir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove unit directory: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", sorterrors.ErrCleanup, errors.Join(errs...))
}

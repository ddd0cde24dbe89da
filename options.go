package linesort

import (
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	sorterrors "github.com/tamirms/linesort/errors"
)

const (
	// defaultChunkSize is the byte threshold at which a chunk is handed to a
	// sort task. Each running task holds one chunk resident.
	defaultChunkSize = 500 << 20

	// defaultBatchLines is how many merged lines are buffered before a single
	// write to the output.
	defaultBatchLines = 10000
)

// SortOption is a functional option for configuring a sort run.
type SortOption func(*sortConfig)

type sortConfig struct {
	chunkSize   int64
	batchLines  int
	workers     int
	tempDir     string
	compression Compression
	logger      grip.Journaler
}

func defaultSortConfig() *sortConfig {
	return &sortConfig{
		chunkSize:  defaultChunkSize,
		batchLines: defaultBatchLines,
		workers:    1, // Each worker holds a full chunk; use WithWorkers(n) to parallelize
	}
}

// WithChunkSize sets the chunk threshold in bytes. A chunk is complete once
// its accumulated lines, terminators included, exceed this size.
func WithChunkSize(bytes int64) SortOption {
	return func(c *sortConfig) {
		c.chunkSize = bytes
	}
}

// WithBatchLines sets how many lines the merger buffers per output write.
func WithBatchLines(n int) SortOption {
	return func(c *sortConfig) {
		c.batchLines = n
	}
}

// WithWorkers sets the number of chunks sorted concurrently.
// Peak memory is roughly (n+1) × chunk size.
func WithWorkers(n int) SortOption {
	return func(c *sortConfig) {
		c.workers = n
	}
}

// WithTempDir sets the parent directory for sorted unit files.
// A private directory is created inside it for each run and removed afterwards.
func WithTempDir(dir string) SortOption {
	return func(c *sortConfig) {
		c.tempDir = dir
	}
}

// WithCompression sets the codec used for sorted unit files.
// Default is CompressionNone.
func WithCompression(comp Compression) SortOption {
	return func(c *sortConfig) {
		c.compression = comp
	}
}

// WithLogger sets the logger used for progress and cleanup reports.
// Defaults to the process-wide grip sender.
func WithLogger(l grip.Journaler) SortOption {
	return func(c *sortConfig) {
		c.logger = l
	}
}

// validate normalizes defaults and rejects unusable settings.
func (c *sortConfig) validate() error {
	if c.chunkSize <= 0 {
		return sorterrors.ErrInvalidChunkSize
	}
	if c.batchLines <= 0 {
		return sorterrors.ErrInvalidBatchSize
	}
	if !c.compression.valid() {
		return sorterrors.ErrUnknownCompression
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.logger == nil {
		c.logger = logging.MakeGrip(grip.GetSender())
	}
	return nil
}

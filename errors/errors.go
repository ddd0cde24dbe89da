// Package errors defines all exported error sentinels for the linesort library.
//
// This is the single source of truth for error values. Every pipeline stage
// wraps its cause with one of the stage sentinels below, so callers can tell
// which stage failed with errors.Is.
package errors

import "errors"

// Configuration errors
var (
	ErrInvalidChunkSize   = errors.New("linesort: chunk size must be positive")
	ErrInvalidBatchSize   = errors.New("linesort: merge batch size must be positive")
	ErrUnknownCompression = errors.New("linesort: unknown unit compression")
)

// Stage errors. All but ErrCleanup are fatal to the run and leave no output.
var (
	ErrInputRead      = errors.New("linesort: input read failed")
	ErrChunkWrite     = errors.New("linesort: sorted unit write failed")
	ErrUnitRead       = errors.New("linesort: sorted unit read failed")
	ErrUnitCorrupt    = errors.New("linesort: sorted unit checksum mismatch")
	ErrOutputWrite    = errors.New("linesort: output write failed")
	ErrDigestMismatch = errors.New("linesort: output lines do not match input lines")
	ErrCleanup        = errors.New("linesort: sorted unit cleanup failed")
)

// Verify errors
var (
	ErrUnsortedOutput    = errors.New("linesort: output is not sorted")
	ErrMissingTerminator = errors.New("linesort: output does not end with a line terminator")
)

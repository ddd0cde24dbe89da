package linesort

import (
	"bytes"
	"slices"
)

// splitLines splits a chunk into its lines. The chunk's trailing terminator
// is dropped first so no empty line is invented at the end; empty lines
// inside the chunk are kept. The returned lines alias chunk.
func splitLines(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}
	chunk = bytes.TrimSuffix(chunk, newline)
	return bytes.Split(chunk, newline)
}

// sortLines orders lines by plain byte comparison. No locale or numeric
// collation is applied, so the order matches bytes.Compare everywhere.
func sortLines(lines [][]byte) {
	slices.SortFunc(lines, bytes.Compare)
}

// sortChunk sorts one chunk and persists it as a new unit, filling u.
// Sort tasks share nothing but alloc, so any number may run at once.
func sortChunk(u *sortedUnit, chunk []byte, alloc *unitAllocator, comp Compression) error {
	lines := splitLines(chunk)
	sortLines(lines)
	return writeUnit(u, alloc, lines, int64(len(chunk)), comp)
}

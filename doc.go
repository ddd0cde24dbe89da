// Package linesort implements an external merge sort for newline-separated
// text files larger than available memory.
//
// Lines are compared as raw bytes (bytes.Compare); no locale, numeric or
// multi-key collation is applied. Memory use is bounded by the chunk size
// times the number of sort workers, plus one merge batch.
//
// # Basic Usage
//
//	stats, err := linesort.SortFile(ctx, "input.txt", "sorted.txt",
//	    linesort.WithChunkSize(256<<20),
//	    linesort.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("sorted %d lines in %d units\n", stats.Lines, stats.Units)
//
// Checking a result later:
//
//	d, err := linesort.Verify("sorted.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !d.Equal(stats.Digest) {
//	    log.Fatal("lines changed")
//	}
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: sort.go (Sort, SortFile, Stats), verify.go (Verify), digest.go (Digest)
//   - Configuration: options.go (SortOption, With* functions), codec.go (Compression)
//   - Split stage: chunker.go (line reading, size-bounded chunks)
//   - Sort stage: chunk_sort.go, unit.go (unit allocation, write, checksummed read-back)
//   - Merge stage: merge.go (batched k-way merge), merge_heap.go (cursor min-heap)
//   - Output: output.go (staged write, atomic rename)
//   - Platform: fadvise_*.go, fallocate_*.go, madvise_*.go, syncdir_*.go
package linesort

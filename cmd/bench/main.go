// Bench is a benchmarking tool for measuring linesort throughput and memory
// usage on generated input.
//
// Usage:
//
//	go run ./cmd/bench -lines 10000000 -chunk 64MiB -workers 4
//	go run ./cmd/bench -lines 2000000 -compress zstd
//
// Flags:
//
//	-lines     Number of lines to generate (default: 10,000,000)
//	-minlen    Minimum line length in bytes (default: 8)
//	-maxlen    Maximum line length in bytes (default: 64)
//	-chunk     Chunk size threshold (default: 64MiB)
//	-batch     Merge batch size in lines (default: 10,000)
//	-workers   Number of parallel sort workers (default: 1)
//	-compress  Unit codec: none, lz4 or zstd (default: none)
//	-dir       Directory for input, output and units (default: os.TempDir())
//	-seed      Generator seed (default: 42)
//	-cpuprofile Write a CPU profile of the sort phase to this file
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spaolacci/murmur3"

	"github.com/tamirms/linesort"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// generateInput writes n pseudo-random hex lines to path. Line i is derived
// from murmur3(i, seed), so the same flags always produce the same file.
func generateInput(path string, n, minLen, maxLen int, seed uint32) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(f, 1<<20)

	var (
		idx     [8]byte
		raw     [16]byte
		line    = make([]byte, 0, maxLen+1)
		written int64
	)
	span := maxLen - minLen + 1
	for i := range n {
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h1, h2 := murmur3.Sum128WithSeed(idx[:], seed)
		binary.LittleEndian.PutUint64(raw[0:8], h1)
		binary.LittleEndian.PutUint64(raw[8:16], h2)

		length := minLen + int(h2%uint64(span))
		line = line[:0]
		for len(line) < length {
			line = hex.AppendEncode(line, raw[:])
		}
		line = append(line[:length], '\n')
		if _, err := w.Write(line); err != nil {
			_ = f.Close()
			return 0, err
		}
		written += int64(len(line))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return 0, err
	}
	return written, f.Close()
}

func main() {
	linesFlag := flag.Int("lines", 10_000_000, "number of lines")
	minLenFlag := flag.Int("minlen", 8, "minimum line length in bytes")
	maxLenFlag := flag.Int("maxlen", 64, "maximum line length in bytes")
	chunkFlag := flag.String("chunk", "64MiB", "chunk size threshold")
	batchFlag := flag.Int("batch", 10_000, "merge batch size in lines")
	workersFlag := flag.Int("workers", 1, "number of parallel sort workers")
	compressFlag := flag.String("compress", "none", "unit codec: none, lz4 or zstd")
	dirFlag := flag.String("dir", "", "working directory (default: os.TempDir())")
	seedFlag := flag.Uint("seed", 42, "generator seed")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sort phase only)")
	flag.Parse()

	if *minLenFlag < 1 || *maxLenFlag < *minLenFlag {
		fmt.Printf("invalid line lengths: minlen=%d maxlen=%d\n", *minLenFlag, *maxLenFlag)
		return
	}
	chunkSize, err := humanize.ParseBytes(*chunkFlag)
	if err != nil {
		fmt.Printf("invalid -chunk: %v\n", err)
		return
	}
	comp, err := linesort.ParseCompression(*compressFlag)
	if err != nil {
		fmt.Printf("invalid -compress: %v\n", err)
		return
	}

	dir, err := os.MkdirTemp(*dirFlag, "linesort-bench-*")
	if err != nil {
		fmt.Printf("create work dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()
	inputPath := filepath.Join(dir, "input.txt")
	outputPath := filepath.Join(dir, "output.txt")

	fmt.Println("Generating lines...")
	genStart := time.Now()
	inputSize, err := generateInput(inputPath, *linesFlag, *minLenFlag, *maxLenFlag, uint32(*seedFlag))
	if err != nil {
		fmt.Printf("generate input: %v\n", err)
		return
	}
	fmt.Printf("  %s lines, %s in %v\n", humanize.Comma(int64(*linesFlag)),
		humanize.IBytes(uint64(inputSize)), time.Since(genStart).Round(time.Millisecond))

	runtime.GC()
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak heap without stop-the-world pauses.
	var peakHeap atomic.Uint64
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakHeap.Load()
					if heapBytes <= old || peakHeap.CompareAndSwap(old, heapBytes) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Sorting...")
	sortStart := time.Now()
	stats, err := linesort.SortFile(context.Background(), inputPath, outputPath,
		linesort.WithChunkSize(int64(chunkSize)),
		linesort.WithBatchLines(*batchFlag),
		linesort.WithWorkers(*workersFlag),
		linesort.WithCompression(comp),
		linesort.WithTempDir(dir))
	sortDuration := time.Since(sortStart)
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	close(done)
	if err != nil {
		fmt.Printf("Sort failed: %v\n", err)
		return
	}

	verifyStart := time.Now()
	digest, err := linesort.Verify(outputPath)
	if err != nil {
		fmt.Printf("Verify failed: %v\n", err)
		return
	}
	if !digest.Equal(stats.Digest) {
		fmt.Printf("Verify failed: output %s, input %s\n", digest, stats.Digest)
		return
	}
	verifyDuration := time.Since(verifyStart)

	mbPerSec := float64(stats.Bytes) / sortDuration.Seconds() / (1 << 20)
	fmt.Printf("\nResults:\n")
	fmt.Printf("  Lines:       %s\n", humanize.Comma(stats.Lines))
	fmt.Printf("  Units:       %d (chunk %s, codec %s)\n", stats.Units, humanize.IBytes(chunkSize), comp)
	fmt.Printf("  Sort:        %v (%.1f MiB/s, %.2f M lines/s)\n", sortDuration.Round(time.Millisecond),
		mbPerSec, float64(stats.Lines)/sortDuration.Seconds()/1e6)
	fmt.Printf("  Verify:      %v\n", verifyDuration.Round(time.Millisecond))
	fmt.Printf("  Peak heap:   %s\n", humanize.IBytes(peakHeap.Load()))
	fmt.Printf("  Peak RSS:    +%s\n", humanize.IBytes(getMaxRSS()-baselineRSS))
	if stats.CleanupErr != nil {
		fmt.Printf("  Cleanup:     %v\n", stats.CleanupErr)
	}
}

// Linesort sorts a text file that may be larger than memory, line by line in
// byte order.
//
// Usage:
//
//	linesort -in access.log -out access.sorted.log
//	linesort -in big.csv -out big.sorted.csv -chunk 1GiB -workers 4 -compress lz4
//	linesort -in data.txt -out data.txt -verify
//
// Flags:
//
//	-in        Input file (required)
//	-out       Output file, replaced atomically (required; may equal -in)
//	-chunk     Chunk size threshold, e.g. 500MiB (default: 500MiB)
//	-batch     Merge batch size in lines (default: 10000)
//	-workers   Number of chunks sorted in parallel (default: 1)
//	-tmp       Parent directory for temporary units (default: os.TempDir())
//	-compress  Unit codec: none, lz4 or zstd (default: none)
//	-verify    Re-read the output and check order and content
//	-v         Debug logging
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"

	"github.com/tamirms/linesort"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "linesort: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	inFlag := flag.String("in", "", "input file")
	outFlag := flag.String("out", "", "output file")
	chunkFlag := flag.String("chunk", "500MiB", "chunk size threshold")
	batchFlag := flag.Int("batch", 10000, "merge batch size in lines")
	workersFlag := flag.Int("workers", 1, "number of chunks sorted in parallel")
	tmpFlag := flag.String("tmp", "", "parent directory for temporary units")
	compressFlag := flag.String("compress", "none", "unit codec: none, lz4 or zstd")
	verifyFlag := flag.Bool("verify", false, "check the output after sorting")
	verboseFlag := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *inFlag == "" || *outFlag == "" {
		flag.Usage()
		return errors.New("-in and -out are required")
	}
	chunkSize, err := humanize.ParseBytes(*chunkFlag)
	if err != nil {
		return fmt.Errorf("invalid -chunk: %w", err)
	}
	comp, err := linesort.ParseCompression(*compressFlag)
	if err != nil {
		return err
	}

	sender := send.MakeNative()
	threshold := level.Info
	if *verboseFlag {
		threshold = level.Debug
	}
	if err := sender.SetLevel(send.LevelInfo{Default: level.Info, Threshold: threshold}); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	if err := grip.SetSender(sender); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	logger := logging.MakeGrip(sender)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := linesort.SortFile(ctx, *inFlag, *outFlag,
		linesort.WithChunkSize(int64(chunkSize)),
		linesort.WithBatchLines(*batchFlag),
		linesort.WithWorkers(*workersFlag),
		linesort.WithTempDir(*tmpFlag),
		linesort.WithCompression(comp),
		linesort.WithLogger(logger))
	if err != nil {
		return err
	}

	if *verifyFlag {
		digest, err := linesort.Verify(*outFlag)
		if err != nil {
			return fmt.Errorf("verify %s: %w", *outFlag, err)
		}
		if !digest.Equal(stats.Digest) {
			return fmt.Errorf("verify %s: output %s does not match input %s", *outFlag, digest, stats.Digest)
		}
		logger.Info(message.Fields{
			"message": "output verified",
			"output":  *outFlag,
			"lines":   digest.Lines,
		})
	}

	fmt.Printf("sorted %s lines (%s) into %s using %d units\n",
		humanize.Comma(stats.Lines), humanize.IBytes(uint64(stats.Bytes)), *outFlag, stats.Units)
	return nil
}

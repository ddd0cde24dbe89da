package linesort

import (
	"encoding/binary"
	"hash/fnv"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/send"
)

const (
	testSeed1 = 0x9E3779B97F4A7C15
	testSeed2 = 0xD1B54A32D192ED03
)

// newTestRNG returns a PCG generator seeded from the test name, so each test
// sees its own deterministic sequence.
func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// quietLogger drops everything below Emergency.
func quietLogger(t testing.TB) grip.Journaler {
	t.Helper()
	sender := send.MakeNative()
	if err := sender.SetLevel(send.LevelInfo{Default: level.Info, Threshold: level.Emergency}); err != nil {
		t.Fatal(err)
	}
	return logging.MakeGrip(sender)
}

// testOpts prepends a quiet logger and a private temp dir to opts.
func testOpts(t testing.TB, unitDir string, opts ...SortOption) []SortOption {
	t.Helper()
	return append([]SortOption{WithLogger(quietLogger(t)), WithTempDir(unitDir)}, opts...)
}

// newTestPipeline builds a pipeline over a fresh unit directory without
// going through Sort, so tests can inspect units between stages.
func newTestPipeline(t testing.TB, opts ...SortOption) *pipeline {
	t.Helper()
	cfg := defaultSortConfig()
	cfg.logger = quietLogger(t)
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "units")
	if err := os.Mkdir(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	return &pipeline{cfg: cfg, dir: dir, alloc: newUnitAllocator(dir, cfg.compression)}
}

// generateLines creates n deterministic pseudo-random lines drawn from a
// small alphabet so duplicates and shared prefixes are common.
func generateLines(rng *randv2.Rand, n, maxLen int) []string {
	const alphabet = "abcAB01 é\t"
	runes := []rune(alphabet)
	lines := make([]string, n)
	for i := range lines {
		var sb strings.Builder
		for range rng.IntN(maxLen + 1) {
			sb.WriteRune(runes[rng.IntN(len(runes))])
		}
		lines[i] = sb.String()
	}
	return lines
}

// joinLines renders lines as a newline-terminated text file.
func joinLines(lines []string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// writeLines writes lines to a new file under dir and returns its path.
func writeLines(t testing.TB, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(joinLines(lines)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// readLines reads a newline-terminated text file back into lines.
func readLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("%s does not end with a newline", path)
	}
	return strings.Split(string(data[:len(data)-1]), "\n")
}

// byteSorted returns a sorted copy of lines. Go string ordering is
// byte-wise, matching bytes.Compare.
func byteSorted(lines []string) []string {
	out := slices.Clone(lines)
	slices.Sort(out)
	return out
}

// assertDirEmpty fails if dir has any entries.
func assertDirEmpty(t testing.TB, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected %s to be empty, found %v", dir, names)
	}
}

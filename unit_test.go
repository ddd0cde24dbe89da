package linesort

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	sorterrors "github.com/tamirms/linesort/errors"
)

// readUnitLines reads a unit to exhaustion, failing on any error.
func readUnitLines(t testing.TB, u *sortedUnit, comp Compression) []string {
	t.Helper()
	rd, err := openUnit(u, comp)
	if err != nil {
		t.Fatal(err)
	}
	defer rd.close()

	var (
		lines []string
		buf   []byte
	)
	for {
		line, err := rd.next(buf)
		if err == io.EOF {
			return lines
		}
		if err != nil {
			t.Fatal(err)
		}
		lines = append(lines, string(line))
		buf = line
	}
}

// writeTestUnit writes lines (assumed sorted) as a unit.
func writeTestUnit(t testing.TB, alloc *unitAllocator, comp Compression, lines []string) *sortedUnit {
	t.Helper()
	raw := make([][]byte, len(lines))
	var size int64
	for i, l := range lines {
		raw[i] = []byte(l)
		size += int64(len(l)) + 1
	}
	u := &sortedUnit{}
	if err := writeUnit(u, alloc, raw, size, comp); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestUnitRoundTrip(t *testing.T) {
	cases := map[string][]string{
		"Empty":        nil,
		"OneEmptyLine": {""},
		"Several":      {"", "", "a", "a", "b\tc", "é"},
	}
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for name, lines := range cases {
			t.Run(comp.String()+"/"+name, func(t *testing.T) {
				alloc := newUnitAllocator(t.TempDir(), comp)
				u := writeTestUnit(t, alloc, comp, lines)
				if got := readUnitLines(t, u, comp); !slices.Equal(got, lines) {
					t.Errorf("got %q, want %q", got, lines)
				}
			})
		}
	}
}

// TestUnitFileIsPlainText pins the uncompressed format: every line
// followed by '\n'.
func TestUnitFileIsPlainText(t *testing.T) {
	alloc := newUnitAllocator(t.TempDir(), CompressionNone)
	u := writeTestUnit(t, alloc, CompressionNone, []string{"a", "", "b"})
	data, err := os.ReadFile(u.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a\n\nb\n" {
		t.Errorf("got %q", data)
	}
}

func TestUnitCorruptionDetected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"FlippedByte", func(d []byte) []byte { d[1] = 'z'; return d }},
		{"TruncatedLine", func(d []byte) []byte { return d[:len(d)-4] }},
		{"ExtraLine", func(d []byte) []byte { return append(d, "zzz\n"...) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			alloc := newUnitAllocator(t.TempDir(), CompressionNone)
			u := writeTestUnit(t, alloc, CompressionNone, []string{"aaa", "bbb", "ccc"})

			data, err := os.ReadFile(u.path)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(u.path, tc.mutate(data), 0o600); err != nil {
				t.Fatal(err)
			}

			rd, err := openUnit(u, CompressionNone)
			if err != nil {
				t.Fatal(err)
			}
			defer rd.close()
			var readErr error
			for readErr == nil {
				_, readErr = rd.next(nil)
			}
			if !errors.Is(readErr, sorterrors.ErrUnitCorrupt) {
				t.Errorf("expected ErrUnitCorrupt, got %v", readErr)
			}
		})
	}
}

func TestOpenUnitMissingFile(t *testing.T) {
	alloc := newUnitAllocator(t.TempDir(), CompressionNone)
	u := writeTestUnit(t, alloc, CompressionNone, []string{"a"})
	if err := os.Remove(u.path); err != nil {
		t.Fatal(err)
	}
	_, err := openUnit(u, CompressionNone)
	if !errors.Is(err, sorterrors.ErrUnitRead) {
		t.Errorf("expected ErrUnitRead, got %v", err)
	}
}

func TestWriteUnitFailure(t *testing.T) {
	alloc := newUnitAllocator(filepath.Join(t.TempDir(), "missing"), CompressionNone)
	u := &sortedUnit{}
	err := writeUnit(u, alloc, [][]byte{[]byte("a")}, 2, CompressionNone)
	if !errors.Is(err, sorterrors.ErrChunkWrite) {
		t.Errorf("expected ErrChunkWrite, got %v", err)
	}
	if u.path != "" {
		t.Errorf("failed unit should not record a path, got %q", u.path)
	}
}

func TestUnitRemove(t *testing.T) {
	alloc := newUnitAllocator(t.TempDir(), CompressionNone)
	u := writeTestUnit(t, alloc, CompressionNone, []string{"a"})
	if err := u.remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(u.path); !os.IsNotExist(err) {
		t.Errorf("unit file still present: %v", err)
	}
	// Already removed, and never written, are both fine
	if err := u.remove(); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if err := (&sortedUnit{}).remove(); err != nil {
		t.Errorf("remove of unwritten unit: %v", err)
	}
}

func TestUnitReaderCloseIdempotent(t *testing.T) {
	alloc := newUnitAllocator(t.TempDir(), CompressionZstd)
	u := writeTestUnit(t, alloc, CompressionZstd, []string{"a"})
	rd, err := openUnit(u, CompressionZstd)
	if err != nil {
		t.Fatal(err)
	}
	if err := rd.close(); err != nil {
		t.Fatal(err)
	}
	if err := rd.close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

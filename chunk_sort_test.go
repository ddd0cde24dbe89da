package linesort

import (
	"os"
	"slices"
	"sync"
	"testing"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  []string
	}{
		{"Empty", "", nil},
		{"OneLine", "a\n", []string{"a"}},
		{"OneEmptyLine", "\n", []string{""}},
		{"InnerEmptyLine", "a\n\nb\n", []string{"a", "", "b"}},
		{"TrailingEmptyLine", "a\n\n", []string{"a", ""}},
		{"NoTrailingTerminator", "a\nb", []string{"a", "b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, l := range splitLines([]byte(tc.chunk)) {
				got = append(got, string(l))
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// TestSortLinesByteOrder pins plain byte ordering: uppercase before
// lowercase, digits compared as text, multi-byte UTF-8 after ASCII.
func TestSortLinesByteOrder(t *testing.T) {
	input := []string{"b", "é", "B", "a", "10", "9", "e", "", "a "}
	want := []string{"", "10", "9", "B", "a", "a ", "b", "e", "é"}

	lines := make([][]byte, len(input))
	for i, s := range input {
		lines[i] = []byte(s)
	}
	sortLines(lines)

	got := make([]string, len(lines))
	for i, l := range lines {
		got[i] = string(l)
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSortChunk(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			dir := t.TempDir()
			alloc := newUnitAllocator(dir, comp)
			chunk := []byte("banana\napple\ncherry\napple\n")

			var u sortedUnit
			if err := sortChunk(&u, chunk, alloc, comp); err != nil {
				t.Fatal(err)
			}
			if u.lines != 4 || u.size != int64(len(chunk)) {
				t.Errorf("unit has %d lines / %d bytes, want 4 / %d", u.lines, u.size, len(chunk))
			}

			got := readUnitLines(t, &u, comp)
			want := []string{"apple", "apple", "banana", "cherry"}
			if !slices.Equal(got, want) {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestUnitAllocatorConcurrentClaims(t *testing.T) {
	alloc := newUnitAllocator(t.TempDir(), CompressionNone)
	const claims = 64

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ids   = make(map[int]bool)
		paths = make(map[string]bool)
	)
	for range claims {
		wg.Go(func() {
			id, path := alloc.claim()
			mu.Lock()
			defer mu.Unlock()
			ids[id] = true
			paths[path] = true
		})
	}
	wg.Wait()

	if len(ids) != claims || len(paths) != claims {
		t.Fatalf("expected %d distinct ids and paths, got %d and %d", claims, len(ids), len(paths))
	}
	for i := range claims {
		if !ids[i] {
			t.Errorf("id %d never allocated", i)
		}
	}
}

func TestUnitAllocatorNaming(t *testing.T) {
	tests := []struct {
		comp Compression
		want string
	}{
		{CompressionNone, "unit-000000.txt"},
		{CompressionLZ4, "unit-000000.txt.lz4"},
		{CompressionZstd, "unit-000000.txt.zst"},
	}
	for _, tc := range tests {
		alloc := newUnitAllocator("runs", tc.comp)
		_, path := alloc.claim()
		if want := "runs" + string(os.PathSeparator) + tc.want; path != want {
			t.Errorf("%s: got %q, want %q", tc.comp, path, want)
		}
	}
}

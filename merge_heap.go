package linesort

import (
	"bytes"
	"io"
)

// cursor pairs a sorted unit with its next unread line.
type cursor struct {
	unit *sortedUnit
	rd   *unitReader
	line []byte // Reused across advances
}

// advance loads the unit's next line. It reports false once the unit is
// exhausted; the reader is left open for the caller to close.
func (c *cursor) advance() (bool, error) {
	line, err := c.rd.next(c.line)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.line = line
	return true, nil
}

// cursorHeap is a min-heap of cursors keyed by their current line.
// Uses index-based heap for O(log k) selection over k live cursors.
type cursorHeap struct {
	items []*cursor
}

func newCursorHeap(capacity int) *cursorHeap {
	return &cursorHeap{items: make([]*cursor, 0, capacity)}
}

func (h *cursorHeap) len() int {
	return len(h.items)
}

// push adds a cursor and maintains heap property. O(log k).
func (h *cursorHeap) push(c *cursor) {
	h.items = append(h.items, c)
	h.up(len(h.items) - 1)
}

// top returns the cursor holding the smallest line.
func (h *cursorHeap) top() *cursor {
	return h.items[0]
}

// fixTop restores heap order after the top cursor advanced.
func (h *cursorHeap) fixTop() {
	h.down(0, len(h.items))
}

// popTop removes and returns the top cursor.
func (h *cursorHeap) popTop() *cursor {
	n := len(h.items) - 1
	h.swap(0, n)
	h.down(0, n)
	c := h.items[n]
	h.items[n] = nil
	h.items = h.items[:n]
	return c
}

func (h *cursorHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *cursorHeap) less(i, j int) bool {
	if c := bytes.Compare(h.items[i].line, h.items[j].line); c != 0 {
		return c < 0
	}
	// Deterministic tie-break by unit id
	return h.items[i].unit.id < h.items[j].unit.id
}

func (h *cursorHeap) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *cursorHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2 // right child
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}

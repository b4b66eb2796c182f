package ot

import "fmt"

// DefaultHistoryCapacity is the history window used when none is configured.
const DefaultHistoryCapacity = 256

// History is a fixed-capacity ring buffer that numbers every added entry with
// a strictly increasing global index. Once full, each Add evicts the oldest
// entry, so the retained indices always form the window
// [FirstIndex, LastIndex] of width at most Cap.
type History[E any] struct {
	buf   []E
	start int // slot of FirstIndex
	count int
	next  int // global index the next Add receives
}

// NewHistory creates an empty history. capacity must be positive.
func NewHistory[E any](capacity int) *History[E] {
	if capacity <= 0 {
		panic(fmt.Sprintf("ot: history capacity must be positive, got %d", capacity))
	}
	return &History[E]{buf: make([]E, capacity)}
}

func (h *History[E]) Cap() int { return len(h.buf) }
func (h *History[E]) Len() int { return h.count }

// FirstIndex is the oldest retained global index. When the history is empty
// it equals the index the next Add will receive.
func (h *History[E]) FirstIndex() int { return h.next - h.count }

// LastIndex is the newest retained global index, FirstIndex-1 when empty.
func (h *History[E]) LastIndex() int { return h.next - 1 }

// Add records e and returns the global index assigned to it.
func (h *History[E]) Add(e E) int {
	if h.count == len(h.buf) {
		h.buf[h.start] = e
		h.start = (h.start + 1) % len(h.buf)
	} else {
		h.buf[(h.start+h.count)%len(h.buf)] = e
		h.count++
	}
	g := h.next
	h.next++
	return g
}

// ValidateIndex reports whether global index g is still retained.
func (h *History[E]) ValidateIndex(g int) bool {
	return g >= h.FirstIndex() && g <= h.LastIndex()
}

// At returns the entry recorded under global index g.
func (h *History[E]) At(g int) (E, error) {
	e, ok := h.TryGet(g)
	if !ok {
		return e, fmt.Errorf("history index %d outside [%d, %d]: %w", g, h.FirstIndex(), h.LastIndex(), ErrIndexOutOfRange)
	}
	return e, nil
}

func (h *History[E]) TryGet(g int) (E, bool) {
	if !h.ValidateIndex(g) {
		var zero E
		return zero, false
	}
	return h.buf[(h.start+g-h.FirstIndex())%len(h.buf)], true
}

// Clear drops every entry but keeps the numbering, so the next Add continues
// where the previous one left off.
func (h *History[E]) Clear() {
	h.clearSlots()
	h.start, h.count = 0, 0
}

// Reset drops every entry and makes next the index of the following Add.
func (h *History[E]) Reset(next int) {
	h.Clear()
	h.next = next
}

func (h *History[E]) clearSlots() {
	var zero E
	for i := range h.buf {
		h.buf[i] = zero
	}
}

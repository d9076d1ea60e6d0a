package session

import "fmt"

// positionReserve keeps a few positions free so that after every eviction
// check there is always room for at least one more decode step.
const positionReserve = 4

// Window tracks the position cursor of a fixed-capacity context and the
// boundary below which positions are protected from eviction. It owns the
// bookkeeping only; the cached attention state itself lives in the model and
// is manipulated through the Memory interface during eviction.
type Window struct {
	capacity int32
	cursor   int32
	boundary int32
}

// NewWindow returns a window over capacity positions with the cursor and
// boundary at zero.
func NewWindow(capacity int32) *Window {
	return &Window{capacity: capacity}
}

func (w *Window) Capacity() int32 { return w.capacity }
func (w *Window) Cursor() int32   { return w.cursor }
func (w *Window) Boundary() int32 { return w.boundary }

// ShouldEvict reports whether writing pending more positions would run into
// the reserved headroom at the end of the window. Callers must check this
// before every batch submission.
func (w *Window) ShouldEvict(pending int) bool {
	return w.cursor+int32(pending) >= w.capacity-positionReserve
}

// Evict discards the oldest half of the movable region [boundary, cursor),
// shifts the remainder down so positions stay contiguous, and moves the
// cursor back. The same removal and shift are applied to the model's cached
// state through mem. Returns the number of positions discarded, which is
// zero when the movable region is too small to split.
func (w *Window) Evict(mem Memory) int32 {
	discard := (w.cursor - w.boundary) / 2
	if discard <= 0 {
		return 0
	}
	if mem != nil {
		mem.RemoveRange(0, w.boundary, w.boundary+discard)
		mem.ShiftRange(0, w.boundary+discard, w.cursor, -discard)
	}
	w.cursor -= discard
	return discard
}

// Advance moves the cursor forward by n positions after a successful batch
// submission. Failing here means an eviction check was skipped: ShouldEvict
// guarantees room when consulted before every submission.
func (w *Window) Advance(n int) error {
	if w.cursor+int32(n) > w.capacity {
		return fmt.Errorf("advance %d past position %d of %d: %w", n, w.cursor, w.capacity, ErrCapacityExceeded)
	}
	w.cursor += int32(n)
	return nil
}

// PinBoundary protects everything written so far from eviction. Called once
// per session reset, after the system prompt is submitted.
func (w *Window) PinBoundary() {
	w.boundary = w.cursor
}

// Reset returns the cursor and boundary to zero.
func (w *Window) Reset() {
	w.cursor = 0
	w.boundary = 0
}

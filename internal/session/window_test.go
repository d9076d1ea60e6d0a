package session

import (
	"errors"
	"testing"
)

type recMemory struct {
	removes [][3]int32
	shifts  [][4]int32
	cleared int
}

func (m *recMemory) RemoveRange(seq, p0, p1 int32) {
	m.removes = append(m.removes, [3]int32{seq, p0, p1})
}

func (m *recMemory) ShiftRange(seq, p0, p1, delta int32) {
	m.shifts = append(m.shifts, [4]int32{seq, p0, p1, delta})
}

func (m *recMemory) Clear() { m.cleared++ }

func TestWindowEvictHalvesMovableRegion(t *testing.T) {
	w := NewWindow(32)
	if err := w.Advance(2); err != nil {
		t.Fatal(err)
	}
	w.PinBoundary()
	if err := w.Advance(10); err != nil {
		t.Fatal(err)
	}

	mem := &recMemory{}
	discarded := w.Evict(mem)

	if discarded != 5 {
		t.Fatalf("expected 5 discarded, got %d", discarded)
	}
	if w.Cursor() != 7 {
		t.Fatalf("expected cursor 7, got %d", w.Cursor())
	}
	if w.Boundary() != 2 {
		t.Fatalf("boundary moved: got %d", w.Boundary())
	}
	if len(mem.removes) != 1 || mem.removes[0] != [3]int32{0, 2, 7} {
		t.Fatalf("unexpected remove calls: %v", mem.removes)
	}
	if len(mem.shifts) != 1 || mem.shifts[0] != [4]int32{0, 7, 12, -5} {
		t.Fatalf("unexpected shift calls: %v", mem.shifts)
	}
}

func TestWindowEvictNoopWhenRegionTooSmall(t *testing.T) {
	for _, used := range []int{0, 1} {
		w := NewWindow(16)
		if err := w.Advance(used); err != nil {
			t.Fatal(err)
		}
		mem := &recMemory{}
		if d := w.Evict(mem); d != 0 {
			t.Fatalf("used=%d: expected no-op, discarded %d", used, d)
		}
		if len(mem.removes) != 0 || len(mem.shifts) != 0 {
			t.Fatalf("used=%d: memory touched on no-op eviction", used)
		}
		if w.Cursor() != int32(used) {
			t.Fatalf("used=%d: cursor moved to %d", used, w.Cursor())
		}
	}
}

func TestWindowShouldEvict(t *testing.T) {
	tests := []struct {
		cursor  int
		pending int
		want    bool
	}{
		{0, 1, false},
		{10, 1, false},
		{11, 1, true},
		{8, 4, true},
		{7, 4, false},
		{0, 12, true},
	}
	for _, tt := range tests {
		w := NewWindow(16)
		if err := w.Advance(tt.cursor); err != nil {
			t.Fatal(err)
		}
		if got := w.ShouldEvict(tt.pending); got != tt.want {
			t.Errorf("cursor=%d pending=%d: got %v, want %v", tt.cursor, tt.pending, got, tt.want)
		}
	}
}

func TestWindowAdvancePastCapacity(t *testing.T) {
	w := NewWindow(8)
	if err := w.Advance(8); err != nil {
		t.Fatal(err)
	}
	err := w.Advance(1)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if w.Cursor() != 8 {
		t.Fatalf("cursor moved on failed advance: %d", w.Cursor())
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(16)
	if err := w.Advance(4); err != nil {
		t.Fatal(err)
	}
	w.PinBoundary()
	if err := w.Advance(4); err != nil {
		t.Fatal(err)
	}
	w.Reset()
	if w.Cursor() != 0 || w.Boundary() != 0 {
		t.Fatalf("reset left cursor=%d boundary=%d", w.Cursor(), w.Boundary())
	}
}

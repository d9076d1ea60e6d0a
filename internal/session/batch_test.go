package session

import "testing"

func TestBuildPartitionsTokens(t *testing.T) {
	tokens := make([]int32, 10)
	for i := range tokens {
		tokens[i] = int32(i + 100)
	}

	b := NewBuilder(4)
	batches := b.Build(tokens, 0, true)

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	wantLens := []int{4, 4, 2}
	for i, batch := range batches {
		if batch.Len() != wantLens[i] {
			t.Fatalf("batch %d: expected len %d, got %d", i, wantLens[i], batch.Len())
		}
	}

	// Positions must run contiguously across batch boundaries, and only
	// the very last entry may request logits.
	pos := int32(0)
	for bi, batch := range batches {
		for ei, e := range batch {
			if e.Pos != pos {
				t.Fatalf("batch %d entry %d: expected pos %d, got %d", bi, ei, pos, e.Pos)
			}
			if e.Token != tokens[pos] {
				t.Fatalf("batch %d entry %d: expected token %d, got %d", bi, ei, tokens[pos], e.Token)
			}
			last := bi == len(batches)-1 && ei == batch.Len()-1
			if e.WantLogits != last {
				t.Fatalf("batch %d entry %d: WantLogits=%v", bi, ei, e.WantLogits)
			}
			if e.Seq != 0 {
				t.Fatalf("batch %d entry %d: expected seq 0, got %d", bi, ei, e.Seq)
			}
			pos++
		}
	}
}

func TestBuildStartOffset(t *testing.T) {
	b := NewBuilder(8)
	batches := b.Build([]int32{1, 2, 3}, 5, false)
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	for i, e := range batches[0] {
		if e.Pos != 5+int32(i) {
			t.Fatalf("entry %d: expected pos %d, got %d", i, 5+i, e.Pos)
		}
		if e.WantLogits {
			t.Fatalf("entry %d requested logits without lastWantsLogits", i)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	b := NewBuilder(4)
	if batches := b.Build(nil, 0, true); batches != nil {
		t.Fatalf("expected nil for empty input, got %v", batches)
	}
}

func TestBuilderDefaultLimit(t *testing.T) {
	if got := NewBuilder(0).Limit(); got != 512 {
		t.Fatalf("expected default limit 512, got %d", got)
	}
	if got := NewBuilder(-3).Limit(); got != 512 {
		t.Fatalf("expected default limit 512, got %d", got)
	}
}

func TestSingle(t *testing.T) {
	batch := NewBuilder(4).Single(42, 7)
	if batch.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", batch.Len())
	}
	e := batch[0]
	if e.Token != 42 || e.Pos != 7 || !e.WantLogits {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

package toy

import (
	"fmt"

	"github.com/samcharles93/castor/internal/session"
)

// Vocabulary layout: one token per byte value, then the special tokens.
const (
	byteVocab       = 256
	TokenBOS  int32 = 256
	TokenEOS  int32 = 257
	VocabSize       = 258
)

// Config configures the toy model.
type Config struct {
	// Seed drives the deterministic logit synthesis. Two models with the
	// same seed produce identical logits for identical context.
	Seed int64
}

// LM is a deterministic byte-level language model used for testing and for
// running the session controller without a real backend. It tokenizes text
// to raw bytes, keeps a position-indexed context memory, and synthesises
// logits from a hash of the recent context. It is deliberately simplistic:
// the point is to exercise the controller's batching, eviction and
// streaming plumbing, not to produce sensible text.
type LM struct {
	seed   int64
	mem    *contextMemory
	closed bool
}

// New constructs a toy model from the given config.
func New(cfg Config) *LM {
	return &LM{
		seed: cfg.Seed,
		mem:  &contextMemory{cells: make(map[int32]int32)},
	}
}

// Tokenize maps each byte of text to its byte token.
func (m *LM) Tokenize(text string) ([]int32, error) {
	if m.closed {
		return nil, fmt.Errorf("toy: model is closed")
	}
	ids := make([]int32, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int32(text[i])
	}
	return ids, nil
}

// Piece returns the single byte a byte token stands for. Special tokens
// have no text.
func (m *LM) Piece(id int32) []byte {
	if id < 0 || id >= byteVocab {
		return nil
	}
	return []byte{byte(id)}
}

func (m *LM) IsStopToken(id int32) bool { return id == TokenEOS }

func (m *LM) VocabSize() int { return VocabSize }

// Decode writes the batch's tokens into context memory at their assigned
// positions and, when the final entry requests logits, returns the
// next-token distribution for it.
func (m *LM) Decode(batch session.Batch) ([]float32, error) {
	if m.closed {
		return nil, fmt.Errorf("toy: model is closed")
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("toy: empty batch")
	}
	for _, e := range batch {
		m.mem.cells[e.Pos] = e.Token
	}
	last := batch[len(batch)-1]
	if !last.WantLogits {
		return nil, nil
	}
	return m.logitsAt(last.Pos), nil
}

func (m *LM) Memory() session.Memory { return m.mem }

func (m *LM) Close() error {
	m.closed = true
	m.mem.Clear()
	return nil
}

// logitsAt derives a full logit vector from the seed and the tokens cached
// at the trailing context positions. Printable ASCII gets a boost so toy
// output stays mostly readable.
func (m *LM) logitsAt(pos int32) []float32 {
	h := uint64(m.seed) ^ 0x9e3779b97f4a7c15
	for p := pos - 7; p <= pos; p++ {
		if p < 0 {
			continue
		}
		if tok, ok := m.mem.cells[p]; ok {
			h = splitmix64(h ^ uint64(uint32(tok)))
		}
	}
	lg := make([]float32, VocabSize)
	for v := range lg {
		bits := splitmix64(h ^ (uint64(v) * 0xbf58476d1ce4e5b9))
		lg[v] = float32(bits%1024)/256.0 - 2.0 // [-2, 2)
		if v >= 32 && v < 127 {
			lg[v] += 3.0
		}
	}
	return lg
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// contextMemory is the toy stand-in for a KV cache: a map from position to
// the token decoded there. Sequence ids are ignored; the session runs a
// single sequence.
type contextMemory struct {
	cells map[int32]int32
}

func (c *contextMemory) RemoveRange(seq, p0, p1 int32) {
	for p := p0; p < p1; p++ {
		delete(c.cells, p)
	}
}

func (c *contextMemory) ShiftRange(seq, p0, p1, delta int32) {
	if delta == 0 {
		return
	}
	// The controller only ever shifts down, so an ascending walk moves
	// each cell into a slot already vacated.
	for p := p0; p < p1; p++ {
		if tok, ok := c.cells[p]; ok {
			delete(c.cells, p)
			c.cells[p+delta] = tok
		}
	}
}

func (c *contextMemory) Clear() {
	c.cells = make(map[int32]int32)
}

package session

// Entry is one token scheduled for decoding: the token id, the context
// position it is written to, the sequence it belongs to, and whether the
// model should produce next-token logits for it.
type Entry struct {
	Token      int32
	Pos        int32
	Seq        int32
	WantLogits bool
}

// Batch is an ordered group of entries submitted to the model together.
// Its length never exceeds the builder's limit.
type Batch []Entry

func (b Batch) Len() int { return len(b) }

// Builder packs token sequences into position-assigned batches. A session
// runs a single sequence, so every entry carries sequence id 0.
type Builder struct {
	limit int
}

// NewBuilder returns a builder producing batches of at most limit entries.
func NewBuilder(limit int) Builder {
	if limit <= 0 {
		limit = 512
	}
	return Builder{limit: limit}
}

func (b Builder) Limit() int { return b.limit }

// Build partitions tokens into ceil(len(tokens)/limit) batches. Token i is
// assigned position start+i. When lastWantsLogits is set, only the final
// entry of the final batch requests logits: the next-token distribution is
// needed exactly once, at the end of the prompt.
func (b Builder) Build(tokens []int32, start int32, lastWantsLogits bool) []Batch {
	if len(tokens) == 0 {
		return nil
	}
	batches := make([]Batch, 0, (len(tokens)+b.limit-1)/b.limit)
	for i := 0; i < len(tokens); i += b.limit {
		end := min(i+b.limit, len(tokens))
		batch := make(Batch, 0, end-i)
		for j := i; j < end; j++ {
			batch = append(batch, Entry{
				Token:      tokens[j],
				Pos:        start + int32(j),
				Seq:        0,
				WantLogits: lastWantsLogits && j == len(tokens)-1,
			})
		}
		batches = append(batches, batch)
	}
	return batches
}

// Single builds the one-entry batch used for each generation step. The
// entry always requests logits so the next step can sample.
func (b Builder) Single(tok, pos int32) Batch {
	return Batch{{Token: tok, Pos: pos, Seq: 0, WantLogits: true}}
}

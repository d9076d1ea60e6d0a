package session

import "io"

// Model is the contract the controller expects from a backend. The
// controller orchestrates calls into it but never looks inside: forward
// passes, vocabulary and tokenization all belong to the implementation.
// Implementations are not required to be safe for concurrent use; the
// controller is the single caller.
type Model interface {
	// Tokenize converts text to token ids without touching session state.
	Tokenize(text string) ([]int32, error)

	// Piece returns the raw bytes for a token id. The bytes may end (or
	// start) mid-way through a multi-byte character; the stream assembler
	// deals with that.
	Piece(id int32) []byte

	// IsStopToken reports whether id terminates generation.
	IsStopToken(id int32) bool

	// VocabSize returns the size of the vocabulary, which is also the
	// length of the logit vectors returned by Decode.
	VocabSize() int

	// Decode submits a batch for processing. When an entry in the batch
	// has WantLogits set, the next-token logits for that entry are
	// returned; otherwise the result slice is nil.
	Decode(batch Batch) ([]float32, error)

	// Memory exposes the model's cached context state for eviction.
	Memory() Memory

	io.Closer
}

// Memory is the model-side view of the context cache. Position arguments
// are half-open ranges [p0, p1) in the given sequence.
type Memory interface {
	// RemoveRange discards cached state for positions [p0, p1).
	RemoveRange(seq, p0, p1 int32)

	// ShiftRange renumbers cached positions [p0, p1) by delta.
	ShiftRange(seq, p0, p1, delta int32)

	// Clear discards all cached state.
	Clear()
}

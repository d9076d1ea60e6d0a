package session

import "time"

// Request holds the parameters for one generation request. Sampling fields
// left at zero are resolved to defaults; the resolved values are fixed for
// the lifetime of the request because the sampler pipeline is rebuilt from
// them once, at the start.
type Request struct {
	Prompt string
	System string

	MaxTokens int

	Temperature   float64
	TopP          float64
	TopK          int
	MinP          float64
	RepeatPenalty float64
	RepeatLastN   int
	Seed          int64
}

func (r Request) withDefaults() Request {
	if r.MaxTokens <= 0 {
		r.MaxTokens = 256
	}
	if r.Temperature <= 0 {
		r.Temperature = 0.7
	}
	if r.TopP <= 0 || r.TopP > 1 {
		r.TopP = 0.95
	}
	if r.TopK <= 0 {
		r.TopK = 40
	}
	if r.RepeatPenalty <= 0 {
		r.RepeatPenalty = 1.1
	}
	if r.RepeatLastN <= 0 {
		r.RepeatLastN = 64
	}
	if r.Seed < 0 {
		r.Seed = time.Now().UnixNano()
	}
	return r
}

// StopReason records how a generation request terminated.
type StopReason string

const (
	// StopToken means the model produced an end-of-generation token.
	StopToken StopReason = "stop"
	// StopBudget means the max-token budget was exhausted.
	StopBudget StopReason = "length"
	// StopCancelled means the stream consumer or context cancelled the
	// request between chunks. A clean stop, not an error.
	StopCancelled StopReason = "cancelled"
	// StopFailed means a decode call failed mid-generation. Output
	// produced before the failure is preserved in the result.
	StopFailed StopReason = "failed"
)

// Stats summarises a finished generation request.
type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Result is the outcome of a generation request: the assembled text, why
// the loop stopped, and throughput stats.
type Result struct {
	Text       string
	StopReason StopReason
	Stats      Stats
}

// Message is one role-tagged entry in the session's chat history.
type Message struct {
	Role    string
	Content string
}

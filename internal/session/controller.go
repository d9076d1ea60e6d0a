package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samcharles93/castor/internal/logits"
	"github.com/samcharles93/castor/internal/logger"
)

// Options configures a session at load time. Threads, GPULayers, UseMmap
// and FlashAttention are backend parameters the controller only records and
// forwards; Capacity and BatchLimit shape the window and batching it owns.
type Options struct {
	Capacity       int
	BatchLimit     int
	Threads        int
	GPULayers      int
	UseMmap        bool
	FlashAttention bool
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 4096
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = 512
	}
	// Leave headroom for the OS and the caller's own threads.
	o.Threads = max(2, min(o.Threads, runtime.NumCPU()-2))
	return o
}

// StreamFunc receives each complete text chunk during streaming generation.
// Returning a non-nil error cancels the request cleanly: the loop stops
// before submitting further batches and the result carries StopCancelled.
type StreamFunc func(chunk string) error

// Controller owns one generation session against a fixed-capacity model
// context: the sliding window, batched prompt submission, the sampling loop
// and incremental emission. It is not reentrant; at most one request may be
// in flight and only the calling goroutine may touch the session.
type Controller struct {
	model   Model
	window  *Window
	builder Builder
	opts    Options
	log     logger.Logger

	state   State
	history []Message
}

// New attaches a controller to a loaded model.
func New(model Model, opts Options, log logger.Logger) (*Controller, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if log == nil {
		log = logger.Default()
	}
	opts = opts.withDefaults()
	return &Controller{
		model:   model,
		window:  NewWindow(int32(opts.Capacity)),
		builder: NewBuilder(opts.BatchLimit),
		opts:    opts,
		log:     log,
		state:   StateIdle,
	}, nil
}

// Opts returns the resolved load options.
func (c *Controller) Opts() Options { return c.opts }

// State returns the controller's current state-machine position.
func (c *Controller) State() State { return c.state }

// History returns the session's chat history since the last reset.
func (c *Controller) History() []Message { return c.history }

// Reset clears chat history, zeroes the window and drops the model's cached
// context. Called at the start of every generation request; reset always
// happens before any batch submission for the new request.
func (c *Controller) Reset() {
	c.history = c.history[:0]
	c.window.Reset()
	if c.model != nil {
		c.model.Memory().Clear()
	}
	c.state = StateIdle
}

// Tokenize converts text to token ids without mutating session state.
func (c *Controller) Tokenize(text string) ([]int32, error) {
	if c.model == nil {
		return nil, ErrModelUnavailable
	}
	return c.model.Tokenize(text)
}

// Close releases the model. Safe to call more than once.
func (c *Controller) Close() error {
	if c.model == nil {
		return nil
	}
	err := c.model.Close()
	c.model = nil
	return err
}

// Generate runs a synchronous generation request and returns the final
// text. When a decode fails mid-generation the partial result is returned
// alongside a *DecodeError; everything produced before the failure is kept.
func (c *Controller) Generate(ctx context.Context, req Request) (*Result, error) {
	return c.run(ctx, req, nil)
}

// GenerateStream runs a generation request, handing each complete text
// chunk to emit as it becomes available. Cancellation via emit or ctx is a
// normal terminal state, not an error.
func (c *Controller) GenerateStream(ctx context.Context, req Request, emit StreamFunc) (*Result, error) {
	return c.run(ctx, req, emit)
}

func (c *Controller) run(ctx context.Context, req Request, emit StreamFunc) (*Result, error) {
	if c.model == nil {
		return nil, ErrModelUnavailable
	}
	req = req.withDefaults()

	c.Reset()

	// Fresh pipeline per request so repeat-penalty history starts clean.
	pipeline := logits.NewPipeline(logits.Config{
		Seed:          req.Seed,
		Temperature:   float32(req.Temperature),
		TopK:          req.TopK,
		TopP:          float32(req.TopP),
		MinP:          float32(req.MinP),
		RepeatPenalty: float32(req.RepeatPenalty),
		RepeatLastN:   req.RepeatLastN,
	})
	asm := &Assembler{}

	// Positions available for prompt material once the generation budget
	// and reserve are set aside. The system prompt must fit inside this
	// with room left over: it is pinned, so it can never be evicted to
	// make space, and submitting it past the eviction threshold would
	// desynchronise pre-assigned batch positions from the model's cache.
	room := int(c.window.Capacity()) - req.MaxTokens - positionReserve

	if req.System != "" {
		sys, err := c.model.Tokenize(req.System)
		if err != nil {
			return nil, fmt.Errorf("tokenize system prompt: %w", err)
		}
		if len(sys) >= room {
			return nil, fmt.Errorf("system prompt of %d tokens leaves no room in context of %d", len(sys), c.window.Capacity())
		}
		c.state = StatePromptSubmitted
		if _, err := c.submit(sys, false); err != nil {
			c.state = StateFailed
			return nil, err
		}
		c.window.PinBoundary()
		c.history = append(c.history, Message{Role: "system", Content: req.System})
	}

	toks, err := c.model.Tokenize(req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("tokenize prompt: %w", err)
	}

	budget := room - int(c.window.Cursor())
	if budget <= 0 {
		return nil, fmt.Errorf("max tokens %d leaves no prompt room in context of %d", req.MaxTokens, c.window.Capacity())
	}
	if len(toks) > budget {
		// Tail-drop truncation: the newest prompt tokens are discarded.
		toks = toks[:budget]
		c.log.Warn("prompt truncated", "tokens", budget)
	}
	c.history = append(c.history, Message{Role: "user", Content: req.Prompt})

	c.state = StatePromptSubmitted
	lg, err := c.submit(toks, true)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	if lg == nil {
		c.state = StateFailed
		return nil, fmt.Errorf("prompt produced no output distribution")
	}

	c.state = StateGenerating
	start := time.Now()
	var (
		sb      strings.Builder
		stats   Stats
		stop    = StopBudget
		loopErr error
	)

	for i := 0; i < req.MaxTokens; i++ {
		if ctx.Err() != nil {
			stop = StopCancelled
			break
		}
		if c.window.ShouldEvict(1) {
			if d := c.window.Evict(c.model.Memory()); d > 0 {
				c.log.Info("shifting context", "discarded", d, "cursor", c.window.Cursor())
			}
		}

		id := pipeline.Sample(lg)
		pipeline.Accept(id)

		if c.model.IsStopToken(id) {
			stop = StopToken
			break
		}

		asm.Push(c.model.Piece(id))
		if chunk, ok := asm.Drain(); ok {
			sb.WriteString(chunk)
			if emit != nil {
				if err := emit(chunk); err != nil {
					stop = StopCancelled
					break
				}
			}
		}

		lg, err = c.model.Decode(c.builder.Single(id, c.window.Cursor()))
		if err != nil {
			loopErr = &DecodeError{Step: i, Err: err}
			stop = StopFailed
			break
		}
		if err := c.window.Advance(1); err != nil {
			loopErr = err
			stop = StopFailed
			break
		}
		stats.TokensGenerated++
	}

	// Residual bytes that never formed a complete character are dropped.
	if tail := asm.Flush(); tail != "" {
		sb.WriteString(tail)
		if emit != nil && stop != StopCancelled {
			_ = emit(tail)
		}
	}

	stats.Duration = time.Since(start)
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.TPS = float64(stats.TokensGenerated) / secs
	}

	switch stop {
	case StopCancelled:
		c.state = StateCancelled
	case StopFailed:
		c.state = StateFailed
	default:
		c.state = StateCompleted
	}

	res := &Result{Text: sb.String(), StopReason: stop, Stats: stats}
	c.history = append(c.history, Message{Role: "assistant", Content: res.Text})

	if loopErr != nil {
		c.log.Error("generation stopped", "step", stats.TokensGenerated, "err", loopErr)
		return res, loopErr
	}
	return res, nil
}

// submit decodes tokens in batches of at most the builder limit, starting
// at the current cursor. Eviction is consulted at every chunk boundary,
// never mid-chunk. Returns the logits of the final entry when requested.
func (c *Controller) submit(toks []int32, lastWantsLogits bool) ([]float32, error) {
	var lg []float32
	for _, batch := range c.builder.Build(toks, c.window.Cursor(), lastWantsLogits) {
		if c.window.ShouldEvict(batch.Len()) {
			if d := c.window.Evict(c.model.Memory()); d > 0 {
				c.log.Info("shifting context", "discarded", d, "cursor", c.window.Cursor())
			}
		}
		out, err := c.model.Decode(batch)
		if err != nil {
			return nil, &DecodeError{Step: -1, Err: err}
		}
		if out != nil {
			lg = out
		}
		if err := c.window.Advance(batch.Len()); err != nil {
			return nil, err
		}
	}
	return lg, nil
}

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when generation or tokenization is
	// requested before a model is attached, or after Close.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrCapacityExceeded indicates the window cursor was advanced past
	// capacity. This is a contract violation in the controller, not a
	// runtime condition: eviction must be checked before every submission.
	ErrCapacityExceeded = errors.New("context capacity exceeded")
)

// DecodeError wraps a failed batch submission to the model. It is fatal to
// the current generation request only; the session stays usable. Step is the
// generation step at which the decode failed, or -1 for prompt submission.
type DecodeError struct {
	Step int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("decode prompt batch: %v", e.Err)
	}
	return fmt.Sprintf("decode at generation step %d: %v", e.Step, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

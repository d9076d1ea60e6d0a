package session

// State is the controller's position in the generation state machine.
type State int

const (
	StateIdle State = iota
	StatePromptSubmitted
	StateGenerating
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePromptSubmitted:
		return "prompt-submitted"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

package repair

// State is a repair loop state for one scene.
type State int

const (
	StateNotStarted State = iota
	StateSynthesizing
	StateCorrecting
	StateRendering
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateSynthesizing:
		return "synthesizing"
	case StateCorrecting:
		return "correcting"
	case StateRendering:
		return "rendering"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

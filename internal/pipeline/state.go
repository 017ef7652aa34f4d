package pipeline

// State is the lifecycle position of a run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateMerging
	StateFailed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateMerging:
		return "merging"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ParseState maps a stored state name back to a State.
func ParseState(name string) State {
	for s := StateIdle; s <= StateDone; s++ {
		if s.String() == name {
			return s
		}
	}
	return StateIdle
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateDone
}

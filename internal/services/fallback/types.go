package fallback

// State of a purchase's attempt chain.
type State int

const (
	StatePrimary State = iota
	StateFallback
	StateExhausted
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StatePrimary:
		return "PRIMARY"
	case StateFallback:
		return "FALLBACK"
	case StateExhausted:
		return "EXHAUSTED"
	case StateSucceeded:
		return "SUCCEEDED"
	default:
		return "UNKNOWN"
	}
}

func (s State) Terminal() bool {
	return s == StateExhausted || s == StateSucceeded
}

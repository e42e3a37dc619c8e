package pipeline

// State is a step of the run state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateLoading
	StateMerging
	StateSaving
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateLoading:
		return "loading"
	case StateMerging:
		return "merging"
	case StateSaving:
		return "saving"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress bands. Each phase owns the slice up to its bound.
const (
	validateEnd   = 20
	loadEnd       = 60
	mergeStart    = 70
	mergeEnd      = 85
	saveEnd       = 100
	fixedEvents   = 4 // merge start, merge end, save end, terminal
	eventsPerFile = 2 // one validate and one load event per input file
)

// bandPercent maps step i (0-based) of n onto the band (from, to].
func bandPercent(from, to, i, n int) int {
	return from + (i+1)*(to-from)/n
}

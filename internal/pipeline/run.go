package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
)

// Event is a progress notification. The last event of a run carries the
// Outcome and is the only one that does.
type Event struct {
	State   State
	Percent int
	Message string
	Outcome *Outcome
}

// Outcome is the terminal result of a run.
type Outcome struct {
	Success bool
	// Kind is meaningful only when Success is false.
	Kind    apperror.Kind
	Message string
	// Fields lists per-field metadata violations, "field: problem".
	Fields   []string
	Files    int
	Rows     int
	Output   string
	Coerced  []string
	Duration time.Duration
	// Err is the internal error chain, for logs only.
	Err error
}

// Run is a handle on one started merge.
type Run struct {
	id      string
	events  chan Event
	done    chan struct{}
	outcome Outcome

	state   atomic.Int32
	mu      sync.Mutex
	percent int
}

func newRun(id string, files int) *Run {
	return &Run{
		id:     id,
		events: make(chan Event, eventsPerFile*files+fixedEvents),
		done:   make(chan struct{}),
	}
}

// ID returns the run identifier that also appears in logs as run_id.
func (r *Run) ID() string { return r.id }

// Events returns the progress stream. It is closed after the terminal event.
// Draining it is optional: the buffer holds every event a run can emit.
func (r *Run) Events() <-chan Event { return r.events }

// State returns the current state.
func (r *Run) State() State { return State(r.state.Load()) }

// Done is closed once the outcome is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its outcome.
func (r *Run) Wait() Outcome {
	<-r.done
	return r.outcome
}

func (r *Run) enter(s State) {
	r.state.Store(int32(s))
}

// progress emits a progress event, clamping percent so that the sequence
// never decreases.
func (r *Run) progress(percent int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if percent < r.percent {
		percent = r.percent
	}
	if percent > saveEnd {
		percent = saveEnd
	}
	r.percent = percent
	r.events <- Event{State: r.State(), Percent: percent, Message: msg}
}

// finish publishes the outcome as the terminal event and closes the stream.
func (r *Run) finish(out Outcome) {
	if out.Success {
		r.enter(StateCompleted)
	} else {
		r.enter(StateFailed)
	}

	r.mu.Lock()
	percent := r.percent
	r.mu.Unlock()

	r.outcome = out
	r.events <- Event{State: r.State(), Percent: percent, Message: out.Message, Outcome: &r.outcome}
	close(r.events)
	close(r.done)
}

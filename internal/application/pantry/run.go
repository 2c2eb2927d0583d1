package pantry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State of a pipeline run
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateAssessing  State = "assessing"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Operation started a run
type Operation string

const (
	OperationGenerate Operation = "generate"
	OperationConfirm  Operation = "confirm"
	OperationIngest   Operation = "ingest"
	OperationScan     Operation = "scan"
)

// Allowed transitions besides X -> Failed, which is always allowed from a
// non-terminal state. Confirm and ingest go straight to Committing, scan
// ends after Generating.
var transitions = map[State][]State{
	StateIdle:       {StateGenerating, StateCommitting},
	StateGenerating: {StateAssessing, StateDone},
	StateAssessing:  {StateCommitting},
	StateCommitting: {StateDone},
}

type transition struct {
	from State
	to   State
	at   time.Time
}

// RunObserver is notified of state changes and finished runs
type RunObserver interface {
	RecordTransition(operation string, from, to string)
	RecordRun(operation, outcome string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordTransition(string, string, string) {}
func (nopObserver) RecordRun(string, string, time.Duration) {}

// Run tracks one pipeline invocation
type Run struct {
	mu        sync.Mutex
	ID        string
	TenantID  string
	Operation Operation
	state     State
	history   []transition
	startedAt time.Time
	err       error
	observer  RunObserver
}

func newRun(op Operation, tenantID string, observer RunObserver) *Run {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Run{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Operation: op,
		state:     StateIdle,
		startedAt: time.Now(),
		observer:  observer,
	}
}

func (r *Run) current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) cause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// path lists the states visited so far, starting at Idle. Failure logs
// carry it so the failing stage is visible.
func (r *Run) path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{string(StateIdle)}
	for _, t := range r.history {
		out = append(out, string(t.to))
	}
	return out
}

// advance moves the run to next. Invalid transitions are programming
// errors and panic.
func (r *Run) advance(next State) {
	r.mu.Lock()
	from := r.state
	if !allowed(from, next) {
		r.mu.Unlock()
		panic(fmt.Sprintf("pantry: invalid transition %s -> %s", from, next))
	}
	r.state = next
	r.history = append(r.history, transition{from: from, to: next, at: time.Now()})
	r.mu.Unlock()

	r.observer.RecordTransition(string(r.Operation), string(from), string(next))
	if next == StateDone {
		r.observer.RecordRun(string(r.Operation), string(StateDone), time.Since(r.startedAt))
	}
}

// fail moves the run to Failed and returns err for convenience
func (r *Run) fail(err error) error {
	r.mu.Lock()
	from := r.state
	if from == StateDone || from == StateFailed {
		r.mu.Unlock()
		return err
	}
	r.state = StateFailed
	r.err = err
	r.history = append(r.history, transition{from: from, to: StateFailed, at: time.Now()})
	r.mu.Unlock()

	r.observer.RecordTransition(string(r.Operation), string(from), string(StateFailed))
	r.observer.RecordRun(string(r.Operation), string(StateFailed), time.Since(r.startedAt))
	return err
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

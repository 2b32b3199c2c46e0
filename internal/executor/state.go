package executor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Terminal and intermediate states a planned unit moves through during a
// run. Every unit starts Pending and ends in exactly one of Succeeded,
// Failed, or Skipped.
type State int32

const (
	Pending State = iota
	Building
	Succeeded
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Building:
		return "building"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Tracks one planned unit through the run.
//
// depCount holds the number of in-plan dependencies that have not yet
// succeeded. A task becomes ready the instant the count reaches zero.
// skipOnce guards the Skipped transition so cascading skips through
// diamond dependencies mark a task exactly once.
type task struct {
	name       string
	state      atomic.Int32
	err        error
	duration   time.Duration
	depCount   atomic.Int32
	dependents []*task
	skipOnce   sync.Once
}

func (t *task) setState(s State) {
	t.state.Store(int32(s))
}

func (t *task) currentState() State {
	return State(t.state.Load())
}

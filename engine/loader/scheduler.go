package loader

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// --- Suspendable Tasks ---

// StepStatus is the outcome of resuming a task once.
type StepStatus int

const (
	// StepContinue means a unit of work finished and the task can be resumed immediately.
	StepContinue StepStatus = iota
	// StepYield means the task is waiting on external work and should be resumed on a later tick.
	StepYield
	// StepDone means the task finished.
	StepDone
	// StepFailed means the task failed with Err.
	StepFailed
)

// StepResult is returned by Task.Resume.
type StepResult struct {
	Status StepStatus
	Err    error
}

var (
	stepContinue = StepResult{Status: StepContinue}
	stepYield    = StepResult{Status: StepYield}
	stepDone     = StepResult{Status: StepDone}
)

func stepFailed(err error) StepResult {
	return StepResult{Status: StepFailed, Err: err}
}

// Task is a suspendable state machine. Each Resume performs at most one unit of work
// and must leave the task in a state from which it can be resumed again.
type Task interface {
	// Resume advances the task by one unit.
	//
	// Parameters:
	//   - ctx: the import context
	//
	// Returns:
	//   - StepResult: what the scheduler should do next
	Resume(ctx context.Context) StepResult
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) StepResult

// Resume calls f.
func (f TaskFunc) Resume(ctx context.Context) StepResult {
	return f(ctx)
}

// --- Scheduler ---

// ImportState is the scheduler state reported by Tick.
type ImportState int

const (
	StateRunning ImportState = iota
	StateDone
	StateFailed
	StateCancelled
)

var importStateNames = [...]string{"running", "done", "failed", "cancelled"}

// String returns the state name.
func (s ImportState) String() string {
	if s < 0 || int(s) >= len(importStateNames) {
		return "unknown"
	}
	return importStateNames[s]
}

// Terminal reports whether the state is final.
func (s ImportState) Terminal() bool {
	return s != StateRunning
}

// SchedulerOption is a functional option for configuring a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickObserver sets a function called with the wall time of every tick.
//
// Parameters:
//   - fn: the observer
//
// Returns:
//   - SchedulerOption: a function that applies the observer to a scheduler
func WithTickObserver(fn func(d time.Duration, state ImportState)) SchedulerOption {
	return func(s *Scheduler) {
		s.onTick = fn
	}
}

// WithIdleWait sets how long Run waits after a tick that yielded on external work.
//
// Parameters:
//   - d: the wait
//
// Returns:
//   - SchedulerOption: a function that applies the wait to a scheduler
func WithIdleWait(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.idle = d
	}
}

// Scheduler drives a root task cooperatively, one quantum per Tick.
// Tick must be called from a single goroutine.
type Scheduler struct {
	root   Task
	cache  *ImportCache
	timer  *QuantumTimer
	state  ImportState
	err    error
	ticks  int
	idle   time.Duration
	onTick func(d time.Duration, state ImportState)
}

// NewScheduler creates a scheduler for root.
//
// Parameters:
//   - root: the pipeline task
//   - cache: the cache released on failure or cancellation, may be nil
//   - timer: the quantum timer
//   - options: scheduler options
//
// Returns:
//   - *Scheduler: the scheduler in StateRunning
func NewScheduler(root Task, cache *ImportCache, timer *QuantumTimer, options ...SchedulerOption) *Scheduler {
	if timer == nil {
		timer = NewQuantumTimer(DefaultQuantum, nil)
	}
	s := &Scheduler{
		root:  root,
		cache: cache,
		timer: timer,
		idle:  time.Millisecond,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Tick resumes the root task unit by unit until it yields, the quantum expires, or it reaches a
// terminal state. Cancellation is checked before every unit.
//
// Parameters:
//   - ctx: the import context
//
// Returns:
//   - ImportState: the state after the tick
//   - error: the failure cause, ErrCancelled when cancelled, nil otherwise
func (s *Scheduler) Tick(ctx context.Context) (ImportState, error) {
	if s.state.Terminal() {
		return s.state, s.err
	}
	s.ticks++
	s.timer.Reset()
	defer func() {
		if s.onTick != nil {
			s.onTick(s.timer.Elapsed(), s.state)
		}
	}()

	for {
		if ctx.Err() != nil {
			s.finish(StateCancelled, ErrCancelled)
			return s.state, s.err
		}

		r := s.root.Resume(ctx)
		switch r.Status {
		case StepContinue:
			if s.timer.Expired() {
				return s.state, nil
			}
		case StepYield:
			return s.state, nil
		case StepDone:
			s.finish(StateDone, nil)
			return s.state, nil
		case StepFailed:
			if ctx.Err() != nil || errors.Is(r.Err, context.Canceled) {
				s.finish(StateCancelled, ErrCancelled)
			} else {
				if r.Err == nil {
					r.Err = errors.New("task failed without an error")
				}
				s.finish(StateFailed, r.Err)
			}
			return s.state, s.err
		}
	}
}

// Run ticks until the root task reaches a terminal state.
//
// Parameters:
//   - ctx: the import context
//
// Returns:
//   - error: the failure cause, ErrCancelled when cancelled, nil on success
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		state, err := s.Tick(ctx)
		if state.Terminal() {
			return err
		}
		if s.idle > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.idle):
			}
		}
	}
}

// State returns the current state.
func (s *Scheduler) State() ImportState {
	return s.state
}

// Err returns the terminal error, if any.
func (s *Scheduler) Err() error {
	return s.err
}

// Ticks returns the number of ticks performed.
func (s *Scheduler) Ticks() int {
	return s.ticks
}

func (s *Scheduler) finish(state ImportState, err error) {
	s.state = state
	s.err = err
	if state != StateDone && s.cache != nil {
		s.cache.Release()
	}
}

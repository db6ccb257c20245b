package loader

import (
	"context"
)

// InterleavedRunner advances independent sub-tasks round-robin, one step per Resume, so that a
// sub-task waiting on external work never starves the others.
// It yields only after a full round in which every pending sub-task yielded.
type InterleavedRunner struct {
	tasks      []Task
	done       []bool
	remaining  int
	cursor     int
	yieldRun   int
	completed  int
	onComplete func(completed, total int)
}

var _ Task = &InterleavedRunner{}

// NewInterleavedRunner creates a runner over tasks.
//
// Parameters:
//   - tasks: the sub-tasks
//   - onComplete: called after each sub-task finishes with (completed, total), may be nil
//
// Returns:
//   - *InterleavedRunner: the runner
func NewInterleavedRunner(tasks []Task, onComplete func(completed, total int)) *InterleavedRunner {
	return &InterleavedRunner{
		tasks:      tasks,
		done:       make([]bool, len(tasks)),
		remaining:  len(tasks),
		onComplete: onComplete,
	}
}

// Resume steps the next pending sub-task once.
func (r *InterleavedRunner) Resume(ctx context.Context) StepResult {
	if r.remaining == 0 {
		return stepDone
	}

	i := r.nextPending()
	res := r.tasks[i].Resume(ctx)
	r.cursor = (i + 1) % len(r.tasks)

	switch res.Status {
	case StepFailed:
		return res
	case StepDone:
		r.done[i] = true
		r.remaining--
		r.completed++
		r.yieldRun = 0
		if r.onComplete != nil {
			r.onComplete(r.completed, len(r.tasks))
		}
		if r.remaining == 0 {
			return stepDone
		}
		return stepContinue
	case StepYield:
		r.yieldRun++
		if r.yieldRun >= r.remaining {
			r.yieldRun = 0
			return stepYield
		}
		return stepContinue
	default:
		r.yieldRun = 0
		return stepContinue
	}
}

// Completed returns the number of finished sub-tasks.
func (r *InterleavedRunner) Completed() int {
	return r.completed
}

func (r *InterleavedRunner) nextPending() int {
	for n := 0; n < len(r.tasks); n++ {
		i := (r.cursor + n) % len(r.tasks)
		if !r.done[i] {
			return i
		}
	}
	return r.cursor
}

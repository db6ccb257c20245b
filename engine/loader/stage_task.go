package loader

import (
	"context"
)

// unitFunc performs one unit of a stage. It returns StepDone when unit i is complete,
// StepYield while waiting on external work, StepContinue after partial progress on a
// multi-step unit, and StepFailed on a fatal error.
type unitFunc func(ctx context.Context, i int) StepResult

// stageTask runs a stage as a sequence of indexed units, suspending between units.
type stageTask struct {
	stage    Stage
	total    int
	next     int
	started  bool
	unit     unitFunc
	progress ProgressSink
}

var _ Task = &stageTask{}

// newStageTask creates a task running unit for indices [0, total).
func newStageTask(stage Stage, total int, progress ProgressSink, unit unitFunc) *stageTask {
	if progress == nil {
		progress = nopProgress{}
	}
	return &stageTask{stage: stage, total: total, unit: unit, progress: progress}
}

func (t *stageTask) Resume(ctx context.Context) StepResult {
	if !t.started {
		t.started = true
		t.progress.ReportProgress(t.stage, 0, t.total)
	}
	if t.next >= t.total {
		return stepDone
	}

	r := t.unit(ctx, t.next)
	if r.Status != StepDone {
		return r
	}
	t.next++
	t.progress.ReportProgress(t.stage, t.next, t.total)
	if t.next >= t.total {
		return stepDone
	}
	return stepContinue
}

// sequenceTask runs tasks one after another. onEnter is called once before a task's first
// Resume and onLeave once after it finishes or fails.
type sequenceTask struct {
	tasks   []Task
	stages  []Stage
	current int
	entered bool
	onEnter func(stage Stage)
	onLeave func(stage Stage, err error)
}

var _ Task = &sequenceTask{}

func (s *sequenceTask) Resume(ctx context.Context) StepResult {
	if s.current >= len(s.tasks) {
		return stepDone
	}
	stage := s.stages[s.current]
	if !s.entered {
		s.entered = true
		if s.onEnter != nil {
			s.onEnter(stage)
		}
	}

	r := s.tasks[s.current].Resume(ctx)
	switch r.Status {
	case StepDone:
		if s.onLeave != nil {
			s.onLeave(stage, nil)
		}
		s.current++
		s.entered = false
		if s.current >= len(s.tasks) {
			return stepDone
		}
		return stepContinue
	case StepFailed:
		if s.onLeave != nil {
			s.onLeave(stage, r.Err)
		}
	}
	return r
}

// add appends a task. Tasks may be added while the sequence runs.
func (s *sequenceTask) add(stage Stage, t Task) {
	s.tasks = append(s.tasks, t)
	s.stages = append(s.stages, stage)
}

// currentStage returns the stage of the running task.
func (s *sequenceTask) currentStage() Stage {
	if s.current >= len(s.stages) {
		return s.stages[len(s.stages)-1]
	}
	return s.stages[s.current]
}

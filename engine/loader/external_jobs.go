package loader

import (
	"context"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// externalJob is blocking work (a fetch, a decompression, a transcode) running off the
// scheduler goroutine. The scheduler polls Done at every resume instead of waiting.
type externalJob struct {
	done   atomic.Bool
	result any
	err    error
}

// Done reports whether the job finished. Result may only be read after Done returns true.
func (j *externalJob) Done() bool {
	return j.done.Load()
}

// Result returns the job outcome.
func (j *externalJob) Result() (any, error) {
	return j.result, j.err
}

// jobResult returns a finished job's typed result.
func jobResult[T any](j *externalJob) (T, error) {
	var zero T
	v, err := j.Result()
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// jobRunner submits external jobs to a worker pool. With no pool, jobs run inline
// and are already done when returned.
type jobRunner struct {
	pool worker.DynamicWorkerPool
	seq  atomic.Int64
}

// newJobRunner creates a runner over pool, which may be nil.
func newJobRunner(pool worker.DynamicWorkerPool) *jobRunner {
	return &jobRunner{pool: pool}
}

// submit schedules fn and returns its pollable handle.
//
// Parameters:
//   - ctx: the import context, passed to fn
//   - payload: a description of the job attached to the pool task
//   - fn: the blocking work
//
// Returns:
//   - *externalJob: the job handle
func (r *jobRunner) submit(ctx context.Context, payload string, fn func(ctx context.Context) (any, error)) *externalJob {
	j := &externalJob{}
	run := func() (any, error) {
		v, err := fn(ctx)
		j.result, j.err = v, err
		j.done.Store(true)
		return v, err
	}

	if r == nil || r.pool == nil {
		run()
		return j
	}
	r.pool.SubmitTask(worker.Task{
		ID:      int(r.seq.Add(1)),
		Payload: payload,
		Do:      run,
	})
	return j
}

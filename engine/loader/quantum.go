package loader

import "time"

// DefaultQuantum is the per-tick time budget used when none is configured.
const DefaultQuantum = 10 * time.Millisecond

// Clock returns the current time. Tests inject a fake clock.
type Clock func() time.Time

// QuantumTimer tracks the time spent since the scheduler last resumed the pipeline.
type QuantumTimer struct {
	budget time.Duration
	now    Clock
	start  time.Time
}

// NewQuantumTimer creates a timer with the given budget.
//
// Parameters:
//   - budget: the per-tick time budget, DefaultQuantum when <= 0
//   - now: the clock, time.Now when nil
//
// Returns:
//   - *QuantumTimer: the timer, already started
func NewQuantumTimer(budget time.Duration, now Clock) *QuantumTimer {
	if budget <= 0 {
		budget = DefaultQuantum
	}
	if now == nil {
		now = time.Now
	}
	q := &QuantumTimer{budget: budget, now: now}
	q.Reset()
	return q
}

// Reset starts a new quantum.
func (q *QuantumTimer) Reset() {
	q.start = q.now()
}

// Elapsed returns the time spent in the current quantum.
func (q *QuantumTimer) Elapsed() time.Duration {
	return q.now().Sub(q.start)
}

// Expired reports whether the current quantum's budget is used up.
func (q *QuantumTimer) Expired() bool {
	return q.Elapsed() >= q.budget
}

// Budget returns the configured budget.
func (q *QuantumTimer) Budget() time.Duration {
	return q.budget
}

package profiler

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// manualClock returns a clock and a function advancing it.
func manualClock() (func() time.Time, func(time.Duration)) {
	now := time.Unix(1_700_000_000, 0)
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestProfiler_Stages(t *testing.T) {
	clock, advance := manualClock()
	p := NewProfiler(nil, WithClock(clock))

	p.EnterStage("parse")
	p.Tick(2 * time.Millisecond)
	p.Units(1)
	advance(5 * time.Millisecond)

	// Entering a stage leaves the current one.
	p.EnterStage("mesh")
	p.Tick(3 * time.Millisecond)
	p.Units(2)
	p.Units(1)
	advance(10 * time.Millisecond)
	p.Tick(4 * time.Millisecond)
	p.LeaveStage(errors.New("boom"))

	// Ticks outside a stage only count towards the total.
	p.Tick(time.Millisecond)

	stages := p.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "parse", stages[0].Name)
	assert.Equal(t, 5*time.Millisecond, stages[0].Wall)
	assert.Equal(t, 2*time.Millisecond, stages[0].Busy)
	assert.Equal(t, 1, stages[0].Ticks)
	assert.False(t, stages[0].Failed)

	assert.Equal(t, "mesh", stages[1].Name)
	assert.Equal(t, 10*time.Millisecond, stages[1].Wall)
	assert.Equal(t, 7*time.Millisecond, stages[1].Busy)
	assert.Equal(t, 2, stages[1].Ticks)
	assert.Equal(t, 2, stages[1].Units)
	assert.True(t, stages[1].Failed)

	assert.Equal(t, 4, p.Ticks())
}

func TestProfiler_Summarize(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock, advance := manualClock()
	p := NewProfiler(zap.New(core), WithClock(clock), WithMemStats(true))

	p.EnterStage("texture")
	p.Tick(time.Millisecond)
	advance(20 * time.Millisecond)

	total := p.Summarize("import finished", zap.String("state", "done"))
	assert.Equal(t, 20*time.Millisecond, total)

	stageLogs := logs.FilterMessage("stage profile").All()
	require.Len(t, stageLogs, 1)
	assert.Equal(t, "texture", stageLogs[0].ContextMap()["stage"])

	summary := logs.FilterMessage("import finished").All()
	require.Len(t, summary, 1)
	fields := summary[0].ContextMap()
	assert.Equal(t, "done", fields["state"])
	assert.Equal(t, int64(1), fields["ticks"])
	assert.Contains(t, fields, "alloc_mb")
	assert.Contains(t, fields, "gc")
}

func TestProfiler_LeaveWithoutStage(t *testing.T) {
	p := NewProfiler(nil)
	p.LeaveStage(nil)
	p.Units(3)
	assert.Empty(t, p.Stages())
}

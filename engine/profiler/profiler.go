package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// StageTiming is the accumulated cost of one pipeline stage.
type StageTiming struct {
	// Name is the stage name.
	Name string

	// Wall is the time from entering to leaving the stage, including time spent between ticks.
	Wall time.Duration

	// Busy is the tick time spent while the stage was current.
	Busy time.Duration

	// Ticks is the number of scheduler ticks that ended in the stage.
	Ticks int

	// Units is the number of units the stage completed.
	Units int

	// Failed is true when the stage ended with an error.
	Failed bool

	entered time.Time
}

// Profiler tracks per-stage timing and allocation for a single import.
// It is driven from the scheduler goroutine and is not safe for concurrent use.
type Profiler struct {
	logger *zap.Logger
	now    func() time.Time

	stages  []StageTiming
	current int

	start           time.Time
	ticks           int
	busy            time.Duration
	memStats        runtime.MemStats
	startTotalAlloc uint64
	startGCCount    uint32
	readMem         bool
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithClock sets the clock used for wall times.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - ProfilerOption: a function that applies the clock to a profiler
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithMemStats enables allocation and GC reporting in the summary.
// Reading memory statistics stops the world briefly, so it is off by default.
//
// Parameters:
//   - enabled: true to read memory statistics
//
// Returns:
//   - ProfilerOption: a function that applies the setting to a profiler
func WithMemStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// NewProfiler creates a new Profiler that summarises through logger.
//
// Parameters:
//   - logger: the logger, zap.NewNop when nil
//   - options: profiler options
//
// Returns:
//   - *Profiler: the newly created profiler, already started
func NewProfiler(logger *zap.Logger, options ...ProfilerOption) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Profiler{
		logger:  logger,
		now:     time.Now,
		current: -1,
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	if p.readMem {
		runtime.ReadMemStats(&p.memStats)
		p.startTotalAlloc = p.memStats.TotalAlloc
		p.startGCCount = p.memStats.NumGC
	}
	return p
}

// EnterStage starts timing a stage. Entering a stage leaves the current one.
//
// Parameters:
//   - name: the stage name
func (p *Profiler) EnterStage(name string) {
	if p.current >= 0 {
		p.LeaveStage(nil)
	}
	p.stages = append(p.stages, StageTiming{Name: name, entered: p.now()})
	p.current = len(p.stages) - 1
}

// LeaveStage stops timing the current stage.
//
// Parameters:
//   - err: the stage error, nil on success
func (p *Profiler) LeaveStage(err error) {
	if p.current < 0 {
		return
	}
	s := &p.stages[p.current]
	s.Wall = p.now().Sub(s.entered)
	s.Failed = err != nil
	p.current = -1
}

// Tick records one scheduler tick against the current stage.
//
// Parameters:
//   - d: the tick's wall time
func (p *Profiler) Tick(d time.Duration) {
	p.ticks++
	p.busy += d
	if p.current >= 0 {
		p.stages[p.current].Ticks++
		p.stages[p.current].Busy += d
	}
}

// Units records the completed unit count reported by the current stage.
//
// Parameters:
//   - completed: the number of units finished so far
func (p *Profiler) Units(completed int) {
	if p.current >= 0 && completed > p.stages[p.current].Units {
		p.stages[p.current].Units = completed
	}
}

// Stages returns the timings recorded so far in stage order.
//
// Returns:
//   - []StageTiming: a copy of the stage timings
func (p *Profiler) Stages() []StageTiming {
	out := make([]StageTiming, len(p.stages))
	copy(out, p.stages)
	return out
}

// Ticks returns the number of recorded ticks.
func (p *Profiler) Ticks() int {
	return p.ticks
}

// Summarize logs one line per stage followed by the import total, and returns the total wall time.
//
// Parameters:
//   - msg: the summary message, e.g. the import outcome
//   - fields: extra fields attached to the total line
//
// Returns:
//   - time.Duration: wall time since the profiler was created
func (p *Profiler) Summarize(msg string, fields ...zap.Field) time.Duration {
	if p.current >= 0 {
		p.LeaveStage(nil)
	}
	total := p.now().Sub(p.start)

	for _, s := range p.stages {
		p.logger.Debug("stage profile",
			zap.String("stage", s.Name),
			zap.Duration("wall", s.Wall),
			zap.Duration("busy", s.Busy),
			zap.Int("ticks", s.Ticks),
			zap.Int("units", s.Units),
			zap.Bool("failed", s.Failed),
		)
	}

	fields = append(fields,
		zap.Duration("wall", total),
		zap.Duration("busy", p.busy),
		zap.Int("ticks", p.ticks),
		zap.Int("stages", len(p.stages)),
	)
	if p.readMem {
		runtime.ReadMemStats(&p.memStats)
		allocMB := float64(p.memStats.TotalAlloc-p.startTotalAlloc) / 1024 / 1024
		fields = append(fields,
			zap.Float64("alloc_mb", allocMB),
			zap.Float64("heap_mb", float64(p.memStats.Alloc)/1024/1024),
			zap.Uint32("gc", p.memStats.NumGC-p.startGCCount),
		)
	}
	p.logger.Info(msg, fields...)
	return total
}

package loader

import "time"

// Stage identifies a pipeline stage in progress reports.
type Stage int

const (
	StageRead Stage = iota
	StageDownload
	StageParse
	StageBuffer
	StageTexture
	StageMaterial
	StageMesh
	StageNode
	StageSkin
	StageMorphTarget
	StageAnimation
)

var stageNames = [...]string{"read", "download", "parse", "buffer", "texture", "material", "mesh", "node", "skin", "morph_target", "animation"}

// String returns the stage name used in logs and metric labels.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// ProgressSink receives a report after each completed unit of work within a stage.
type ProgressSink interface {
	// ReportProgress is called as (stage, completed, total). A report with completed == 0 marks the stage start.
	//
	// Parameters:
	//   - stage: the reporting stage
	//   - completed: the number of finished units
	//   - total: the number of units in the stage
	ReportProgress(stage Stage, completed, total int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(stage Stage, completed, total int)

// ReportProgress calls f.
func (f ProgressFunc) ReportProgress(stage Stage, completed, total int) {
	f(stage, completed, total)
}

// ImportObserver is notified of scheduler ticks and import outcomes.
type ImportObserver interface {
	// ObserveTick records one scheduler tick.
	//
	// Parameters:
	//   - name: the import name
	//   - stage: the stage that was running when the tick ended
	//   - d: the tick's wall time
	ObserveTick(name string, stage Stage, d time.Duration)

	// ObserveImport records a finished import.
	//
	// Parameters:
	//   - name: the import name
	//   - state: the terminal state
	//   - d: wall time from Begin to the terminal state
	//   - warnings: the number of recorded warnings
	ObserveImport(name string, state ImportState, d time.Duration, warnings int)
}

// multiProgress fans a report out to several sinks.
type multiProgress []ProgressSink

func (m multiProgress) ReportProgress(stage Stage, completed, total int) {
	for _, s := range m {
		s.ReportProgress(stage, completed, total)
	}
}

// nopProgress discards reports.
type nopProgress struct{}

func (nopProgress) ReportProgress(Stage, int, int) {}

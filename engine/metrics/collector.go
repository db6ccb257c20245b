// Package metrics exports import progress and outcomes as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-import/engine/loader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "oxy_import"

// Collector records loader progress and import outcomes. It implements loader.ProgressSink
// and loader.ImportObserver and is safe for concurrent use.
type Collector struct {
	stageUnits     *prometheus.CounterVec
	stageProgress  *prometheus.GaugeVec
	tickDuration   *prometheus.HistogramVec
	importsTotal   *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	warningsTotal  prometheus.Counter

	logger *zap.Logger

	mu            sync.Mutex
	lastCompleted map[loader.Stage]int
}

var (
	_ loader.ProgressSink   = &Collector{}
	_ loader.ImportObserver = &Collector{}
)

// NewCollector creates a collector and registers its metrics with reg.
//
// Parameters:
//   - reg: the registerer, prometheus.DefaultRegisterer when nil
//   - namespace: the metric namespace, DefaultNamespace when ""
//   - logger: the logger, zap.NewNop when nil
//
// Returns:
//   - *Collector: the collector
func NewCollector(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		stageUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_units_total",
				Help:      "Units of work completed per pipeline stage",
			},
			[]string{"stage"},
		),
		stageProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_progress_ratio",
				Help:      "Completed fraction of the most recently reported stage",
			},
			[]string{"stage"},
		),
		tickDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Wall time of one scheduler tick",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.015, 0.025, 0.05, 0.1},
			},
			[]string{"stage"},
		),
		importsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Finished imports by terminal state",
			},
			[]string{"state"},
		),
		importDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Wall time from the start of an import to its terminal state",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"state"},
		),
		warningsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Recoverable problems recorded by finished imports",
			},
		),
		logger:        logger.With(zap.String("component", "metrics")),
		lastCompleted: make(map[loader.Stage]int),
	}
}

// ReportProgress counts completed units. Units are derived from the change in the
// completed count, so counts are exact while imports run one at a time.
func (c *Collector) ReportProgress(stage loader.Stage, completed, total int) {
	c.mu.Lock()
	last := c.lastCompleted[stage]
	if completed < last {
		last = 0
	}
	c.lastCompleted[stage] = completed
	c.mu.Unlock()

	label := stage.String()
	if delta := completed - last; delta > 0 {
		c.stageUnits.WithLabelValues(label).Add(float64(delta))
	}
	ratio := 1.0
	if total > 0 {
		ratio = float64(completed) / float64(total)
	}
	c.stageProgress.WithLabelValues(label).Set(ratio)
}

// ObserveTick records a tick's duration against the stage that was running.
func (c *Collector) ObserveTick(_ string, stage loader.Stage, d time.Duration) {
	c.tickDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

// ObserveImport records a finished import.
func (c *Collector) ObserveImport(name string, state loader.ImportState, d time.Duration, warnings int) {
	label := state.String()
	c.importsTotal.WithLabelValues(label).Inc()
	c.importDuration.WithLabelValues(label).Observe(d.Seconds())
	c.warningsTotal.Add(float64(warnings))
	c.logger.Debug("import observed",
		zap.String("import", name),
		zap.String("state", label),
		zap.Duration("duration", d),
		zap.Int("warnings", warnings),
	)
}

package loader

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-import/engine/config"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithBackend is an option builder that selects the file format backend.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - LoaderBuilderOption: a function that applies the backend option to a loader
func WithBackend(t LoaderBackendType) LoaderBuilderOption {
	return func(l *loader) {
		l.backendType = t
	}
}

// WithSettings is an option builder that applies loaded settings. Options after it override
// the individual values it sets.
//
// Parameters:
//   - s: the settings
//
// Returns:
//   - LoaderBuilderOption: a function that applies the settings to a loader
func WithSettings(s config.Settings) LoaderBuilderOption {
	return func(l *loader) {
		l.quantum = s.Scheduler.Quantum
		l.idleWait = s.Scheduler.IdleWait
		l.workers = s.Workers
		l.sourceSettings = s.Source
		l.cacheModels = s.CacheModels
		l.memStats = s.ProfileMemory
	}
}

// WithLogger is an option builder that sets the logger. Every import logs through a child
// logger carrying its import id.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithByteSource is an option builder that sets the source external references are read from.
//
// Parameters:
//   - src: the byte source
//
// Returns:
//   - LoaderBuilderOption: a function that applies the source option to a loader
func WithByteSource(src ByteSource) LoaderBuilderOption {
	return func(l *loader) {
		l.source = src
	}
}

// WithArchive is an option builder that sets an archive consulted before the byte source.
//
// Parameters:
//   - a: the archive
//
// Returns:
//   - LoaderBuilderOption: a function that applies the archive option to a loader
func WithArchive(a Archive) LoaderBuilderOption {
	return func(l *loader) {
		l.archive = a
	}
}

// WithDecompressor is an option builder that enables compressed geometry.
//
// Parameters:
//   - d: the geometry decompressor
//
// Returns:
//   - LoaderBuilderOption: a function that applies the decompressor option to a loader
func WithDecompressor(d GeometryDecompressor) LoaderBuilderOption {
	return func(l *loader) {
		l.caps.Decompressor = d
	}
}

// WithTranscoder is an option builder that enables supercompressed textures.
//
// Parameters:
//   - t: the texture transcoder
//
// Returns:
//   - LoaderBuilderOption: a function that applies the transcoder option to a loader
func WithTranscoder(t TextureTranscoder) LoaderBuilderOption {
	return func(l *loader) {
		l.caps.Transcoder = t
	}
}

// WithProgress is an option builder that adds a progress sink. It may be given several times.
//
// Parameters:
//   - sink: the progress sink
//
// Returns:
//   - LoaderBuilderOption: a function that applies the progress option to a loader
func WithProgress(sink ProgressSink) LoaderBuilderOption {
	return func(l *loader) {
		if sink != nil {
			l.progress = append(l.progress, sink)
		}
	}
}

// WithObserver is an option builder that sets the tick and outcome observer.
//
// Parameters:
//   - o: the observer
//
// Returns:
//   - LoaderBuilderOption: a function that applies the observer option to a loader
func WithObserver(o ImportObserver) LoaderBuilderOption {
	return func(l *loader) {
		l.observer = o
	}
}

// WithWorkerPool is an option builder that runs external jobs on a caller-owned pool.
// Close does not stop a pool passed here.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - LoaderBuilderOption: a function that applies the pool option to a loader
func WithWorkerPool(pool worker.DynamicWorkerPool) LoaderBuilderOption {
	return func(l *loader) {
		l.pool = pool
		l.ownsPool = false
	}
}

// WithInlineJobs is an option builder that runs external jobs on the scheduler goroutine.
//
// Returns:
//   - LoaderBuilderOption: a function that disables the worker pool
func WithInlineJobs() LoaderBuilderOption {
	return func(l *loader) {
		l.pool = nil
		l.workers.Count = 0
	}
}

// WithRegistry is an option builder that replaces the default extension registry.
//
// Parameters:
//   - r: the registry
//
// Returns:
//   - LoaderBuilderOption: a function that applies the registry option to a loader
func WithRegistry(r *ExtensionRegistry) LoaderBuilderOption {
	return func(l *loader) {
		l.registry = r
	}
}

// WithQuantum is an option builder that sets the per-tick time budget.
//
// Parameters:
//   - d: the budget
//
// Returns:
//   - LoaderBuilderOption: a function that applies the quantum option to a loader
func WithQuantum(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.quantum = d
	}
}

// WithClock is an option builder that sets the clock used by quantum timers and profiles.
//
// Parameters:
//   - c: the clock
//
// Returns:
//   - LoaderBuilderOption: a function that applies the clock option to a loader
func WithClock(c Clock) LoaderBuilderOption {
	return func(l *loader) {
		l.clock = c
	}
}

// WithTracer is an option builder that sets the tracer for import and stage spans.
//
// Parameters:
//   - t: the tracer
//
// Returns:
//   - LoaderBuilderOption: a function that applies the tracer option to a loader
func WithTracer(t trace.Tracer) LoaderBuilderOption {
	return func(l *loader) {
		l.tracer = t
	}
}

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}

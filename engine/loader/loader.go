package loader

import (
	"context"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-import/engine/config"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/Carmen-Shannon/oxy-import/engine/source"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

var errLoaderClosed = errors.New("loader is closed")

var (
	_ Archive    = (*source.ZipArchive)(nil)
	_ ByteSource = source.Source(nil)
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache  map[string]model.Model
	cacheModels bool

	backendType LoaderBackendType
	backend     loaderBackend

	registry *ExtensionRegistry
	caps     Capabilities
	source   ByteSource
	archive  Archive
	logger   *zap.Logger
	progress []ProgressSink
	observer ImportObserver
	tracer   trace.Tracer
	clock    Clock

	quantum  time.Duration
	idleWait time.Duration
	memStats bool

	workers        config.WorkerSettings
	sourceSettings config.SourceSettings
	pool           worker.DynamicWorkerPool
	ownsPool       bool
	jobs           *jobRunner

	closed bool
}

// Loader defines the public-facing interface for importing and caching scenes.
// It abstracts the file format behind a backend, owns the extension registry, the optional
// decoder capabilities and the worker pool shared by its imports, and caches finished models.
type Loader interface {
	// Load imports a file and blocks until the import finishes. A cached model is returned
	// without importing again. A .zip path is opened as an archive and its shallowest
	// .gltf/.glb entry is imported, with external references served from the archive.
	//
	// Parameters:
	//   - ctx: the import context, cancelling it cancels the import
	//   - path: a file path or http(s) URL
	//
	// Returns:
	//   - model.Model: the imported model
	//   - error: an ImportError, ErrCancelled, or an error reading the file
	Load(ctx context.Context, path string) (model.Model, error)

	// LoadBytes imports an in-memory container and blocks until the import finishes.
	// External references are read through the byte source relative to the working directory.
	//
	// Parameters:
	//   - ctx: the import context
	//   - name: the import name and cache key
	//   - data: the glTF JSON or GLB bytes
	//
	// Returns:
	//   - model.Model: the imported model
	//   - error: an ImportError or ErrCancelled
	LoadBytes(ctx context.Context, name string, data []byte) (model.Model, error)

	// Begin prepares a progressive import of an in-memory container. The host advances it
	// with Import.Tick; the finished model is added to the cache.
	//
	// Parameters:
	//   - name: the import name and cache key
	//   - data: the glTF JSON or GLB bytes
	//
	// Returns:
	//   - *Import: the import handle
	//   - error: error if the loader is closed or data is empty
	Begin(name string, data []byte) (*Import, error)

	// BeginPath reads a file (or archive) and prepares a progressive import of it.
	//
	// Parameters:
	//   - ctx: the read context
	//   - path: a file path, .zip path or http(s) URL
	//
	// Returns:
	//   - *Import: the import handle
	//   - error: error if the file cannot be read or has an unsupported extension
	BeginPath(ctx context.Context, path string) (*Import, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Evict removes a model from the cache.
	//
	// Parameters:
	//   - name: the cache key
	Evict(name string)

	// Registry returns the loader's extension registry. Registering extensions while
	// imports are running is not supported.
	//
	// Returns:
	//   - *ExtensionRegistry: the registry
	Registry() *ExtensionRegistry

	// Close stops the worker pool if the loader created it. Running imports must be
	// finished or cancelled first.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the options applied. Settings default to config.Default.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided options
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]model.Model),
		logger:     zap.NewNop(),
	}
	WithSettings(config.Default())(l)
	for _, option := range options {
		option(l)
	}

	switch l.backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}
	if l.registry == nil {
		l.registry = DefaultExtensionRegistry()
	}
	if l.pool == nil && l.workers.Count > 0 {
		l.pool = worker.NewDynamicWorkerPool(l.workers.Count, l.workers.QueueSize, l.workers.IdleTimeout)
		l.ownsPool = true
	}
	l.jobs = newJobRunner(l.pool)
	if l.source == nil {
		l.source = l.defaultSource()
	}
	l.logger = l.logger.With(zap.String("component", "loader"))
	return l
}

// defaultSource builds the file and HTTP source described by the source settings.
func (l *loader) defaultSource() ByteSource {
	web := source.NewHTTPSource(
		source.WithHTTPClient(&http.Client{Timeout: l.sourceSettings.HTTPTimeout}),
		source.WithMaxBytes(l.sourceSettings.MaxBytes),
		source.WithHTTPLogger(l.logger.With(zap.String("component", "source"))),
	)
	return source.NewDedup(source.NewRouter(source.NewDirSource(l.sourceSettings.BaseDir), web))
}

func (l *loader) env() importEnv {
	var progress ProgressSink
	switch len(l.progress) {
	case 0:
	case 1:
		progress = l.progress[0]
	default:
		progress = multiProgress(l.progress)
	}
	return importEnv{
		registry: l.registry,
		caps:     l.caps,
		jobs:     l.jobs,
		source:   l.source,
		archive:  l.archive,
		logger:   l.logger,
		progress: progress,
		observer: l.observer,
		tracer:   l.tracer,
		quantum:  l.quantum,
		clock:    l.clock,
		idleWait: l.idleWait,
		memStats: l.memStats,
	}
}

func (l *loader) Load(ctx context.Context, path string) (model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}
	imp, err := l.BeginPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return imp.Run(ctx)
}

func (l *loader) LoadBytes(ctx context.Context, name string, data []byte) (model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}
	imp, err := l.Begin(name, data)
	if err != nil {
		return nil, err
	}
	return imp.Run(ctx)
}

func (l *loader) Begin(name string, data []byte) (*Import, error) {
	return l.begin(name, "", data, l.env())
}

func (l *loader) BeginPath(ctx context.Context, ref string) (*Import, error) {
	ext := strings.ToLower(path.Ext(ref))
	if ext != ".zip" {
		if _, err := l.resolveBackend(ref); err != nil {
			return nil, err
		}
	}

	env := l.env()
	data, err := l.read(ctx, ref, env.progress)
	if err != nil {
		return nil, err
	}
	if ext != ".zip" {
		return l.begin(ref, referenceDir(ref), data, env)
	}

	archive, err := source.NewZipArchive(data)
	if err != nil {
		return nil, &ImportError{Kind: ErrIO, Entity: entityDocument, Index: -1, Err: err}
	}
	entry, ok := archive.SceneEntry()
	if !ok {
		return nil, newImportError(ErrIO, entityDocument, -1, "archive %s holds no .gltf or .glb file", ref)
	}
	scene, _, err := archive.Entry(entry)
	if err != nil {
		return nil, &ImportError{Kind: ErrIO, Entity: entityDocument, Index: -1, Err: err}
	}
	l.logger.Debug("importing archive entry", zap.String("archive", ref), zap.String("entry", entry))
	env.archive = archive
	return l.begin(ref, path.Dir(entry), scene, env)
}

// begin creates an import and arranges for its model to be cached when it finishes.
func (l *loader) begin(name, baseDir string, data []byte, env importEnv) (*Import, error) {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, errLoaderClosed
	}
	if len(data) == 0 {
		return nil, newImportError(ErrParse, entityDocument, -1, "%s is empty", name)
	}

	imp := l.backend.Begin(name, baseDir, data, env)
	imp.onFinish = l.store
	imp.logger.Debug("import started", zap.Int("bytes", len(data)), zap.String("base", baseDir))
	return imp, nil
}

// read fetches the main file through the byte source, reporting the read stage.
func (l *loader) read(ctx context.Context, ref string, progress ProgressSink) ([]byte, error) {
	if progress == nil {
		progress = nopProgress{}
	}
	progress.ReportProgress(StageRead, 0, 1)
	data, err := l.source.ReadBytes(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, wrapImportError(ErrIO, entityDocument, -1, err, "read "+ref)
	}
	progress.ReportProgress(StageRead, 1, 1)
	return data, nil
}

// store caches a successfully finished import's model.
func (l *loader) store(imp *Import) {
	if !l.cacheModels || imp.Result() == nil {
		return
	}
	l.mu.Lock()
	l.modelCache[imp.Name()] = imp.Result()
	l.mu.Unlock()
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, name)
}

func (l *loader) Registry() *ExtensionRegistry {
	return l.registry
}

func (l *loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.ownsPool {
		l.pool.Stop()
	}
}

// resolveBackend checks that the file extension is handled by the backend.
func (l *loader) resolveBackend(ref string) (loaderBackend, error) {
	ext := strings.ToLower(path.Ext(ref))
	for _, e := range l.backend.Extensions() {
		if e == ext {
			return l.backend, nil
		}
	}
	return nil, errors.Errorf("unsupported model format: %q", ext)
}

// referenceDir returns the directory (or URL prefix) relative references of ref resolve against.
func referenceDir(ref string) string {
	if source.IsURL(ref) {
		if i := strings.LastIndex(ref, "/"); i > strings.Index(ref, "://")+2 {
			return ref[:i+1]
		}
		return ref
	}
	dir := path.Dir(strings.ReplaceAll(ref, "\\", "/"))
	if dir == "." {
		return ""
	}
	return dir
}

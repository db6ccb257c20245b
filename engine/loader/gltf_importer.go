package loader

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/Carmen-Shannon/oxy-import/engine/profiler"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Carmen-Shannon/oxy-import/engine/loader"

// importEnv is what an import takes from its Loader.
type importEnv struct {
	registry *ExtensionRegistry
	caps     Capabilities
	jobs     *jobRunner
	source   ByteSource
	archive  Archive
	logger   *zap.Logger
	progress ProgressSink
	observer ImportObserver
	tracer   trace.Tracer
	quantum  time.Duration
	clock    Clock
	idleWait time.Duration
	memStats bool
}

// Import is one progressive import. The host drives it by calling Tick once per frame
// (or Run to block until it finishes). Tick must be called from a single goroutine.
type Import struct {
	id      uuid.UUID
	name    string
	baseDir string
	data    []byte
	env     importEnv
	logger  *zap.Logger

	cache     *ImportCache
	parser    gltfParser
	ic        *importContext
	pipeline  *sequenceTask
	scheduler *Scheduler
	profiler  *profiler.Profiler
	progress  ProgressSink

	span      trace.Span
	stageSpan trace.Span

	result   model.Model
	err      error
	finished bool
	onFinish func(*Import)
}

// newImport prepares an import of data. Nothing is parsed until the first Tick.
//
// Parameters:
//   - name: the import name, used for the root object and logs
//   - baseDir: the directory relative references resolve against, "" for none
//   - data: the glTF JSON or GLB container
//   - env: the loader configuration
//
// Returns:
//   - *Import: the import in StateRunning
func newImport(name, baseDir string, data []byte, env importEnv) *Import {
	if env.registry == nil {
		env.registry = DefaultExtensionRegistry()
	}
	if env.logger == nil {
		env.logger = zap.NewNop()
	}
	if env.tracer == nil {
		env.tracer = otel.Tracer(instrumentationName)
	}

	id := uuid.New()
	i := &Import{
		id:      id,
		name:    name,
		baseDir: baseDir,
		data:    data,
		env:     env,
		logger: env.logger.With(
			zap.String("import_id", id.String()),
			zap.String("component", "loader"),
			zap.String("import", name),
		),
		cache: NewImportCache(),
	}
	i.parser = newGLTFParser(env.registry, i.cache)

	profilerOptions := []profiler.ProfilerOption{profiler.WithMemStats(env.memStats)}
	if env.clock != nil {
		profilerOptions = append(profilerOptions, profiler.WithClock(env.clock))
	}
	i.profiler = profiler.NewProfiler(i.logger, profilerOptions...)

	i.progress = ProgressFunc(i.recordUnits)
	if env.progress != nil {
		i.progress = multiProgress{env.progress, i.progress}
	}

	i.pipeline = &sequenceTask{onEnter: i.enterStage, onLeave: i.leaveStage}
	i.pipeline.add(StageParse, TaskFunc(i.parse))

	schedulerOptions := []SchedulerOption{WithTickObserver(i.observeTick)}
	if env.idleWait > 0 {
		schedulerOptions = append(schedulerOptions, WithIdleWait(env.idleWait))
	}
	i.scheduler = NewScheduler(i.pipeline, i.cache, NewQuantumTimer(env.quantum, env.clock), schedulerOptions...)
	return i
}

// ID returns the import id attached to every log line of the import.
func (i *Import) ID() uuid.UUID {
	return i.id
}

// Name returns the import name.
func (i *Import) Name() string {
	return i.name
}

// State returns the scheduler state.
func (i *Import) State() ImportState {
	return i.scheduler.State()
}

// Stage returns the stage currently running, or the last stage once finished.
func (i *Import) Stage() Stage {
	return i.pipeline.currentStage()
}

// Err returns the terminal error, nil while running or on success.
func (i *Import) Err() error {
	return i.err
}

// Result returns the imported model, nil until the import is done.
func (i *Import) Result() model.Model {
	return i.result
}

// Warnings returns the recoverable problems recorded so far.
func (i *Import) Warnings() []model.ImportWarning {
	if i.ic == nil {
		return nil
	}
	return i.ic.warnings
}

// Ticks returns the number of ticks performed.
func (i *Import) Ticks() int {
	return i.scheduler.Ticks()
}

// Profile returns the per-stage timings recorded so far.
func (i *Import) Profile() []profiler.StageTiming {
	return i.profiler.Stages()
}

// Tick advances the import by at most one quantum.
//
// Parameters:
//   - ctx: the import context, cancelling it cancels the import
//
// Returns:
//   - ImportState: the state after the tick
//   - error: the failure cause, ErrCancelled when cancelled, nil otherwise
func (i *Import) Tick(ctx context.Context) (ImportState, error) {
	if i.span == nil {
		_, i.span = i.env.tracer.Start(ctx, "gltf.import", trace.WithAttributes(
			attribute.String("import.id", i.id.String()),
			attribute.String("import.name", i.name),
		))
	}
	state, err := i.scheduler.Tick(trace.ContextWithSpan(ctx, i.span))
	if state.Terminal() {
		i.finish(state, err)
	}
	return state, err
}

// Run ticks the import until it reaches a terminal state.
//
// Parameters:
//   - ctx: the import context
//
// Returns:
//   - model.Model: the imported model
//   - error: the failure cause, ErrCancelled when cancelled
func (i *Import) Run(ctx context.Context) (model.Model, error) {
	idle := i.env.idleWait
	if idle <= 0 {
		idle = time.Millisecond
	}
	for {
		state, err := i.Tick(ctx)
		if state.Terminal() {
			if err != nil {
				return nil, err
			}
			return i.result, nil
		}
		select {
		case <-ctx.Done():
		case <-time.After(idle):
		}
	}
}

// parse is the first pipeline task: it parses the container, checks required extensions
// and appends the decoding stages.
func (i *Import) parse(_ context.Context) StepResult {
	i.progress.ReportProgress(StageParse, 0, 1)
	if err := i.parser.Parse(i.data); err != nil {
		return stepFailed(err)
	}
	doc := i.parser.Document()
	if err := checkRequiredExtensions(doc, i.env.registry, i.env.caps); err != nil {
		return stepFailed(err)
	}
	for _, name := range doc.ExtensionsUsed {
		if !i.env.registry.Known(name) {
			i.logger.Info("ignoring unknown extension", zap.String("extension", name))
		}
	}
	i.data = nil

	env := i.env
	env.logger = i.logger
	env.progress = i.progress
	i.ic = newImportContext(displayName(i.name), i.baseDir, i.parser, i.cache, env)

	i.logger.Debug("document parsed",
		zap.Int("buffers", len(doc.Buffers)),
		zap.Int("images", len(doc.Images)),
		zap.Int("materials", len(doc.Materials)),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("skins", len(doc.Skins)),
		zap.Int("animations", len(doc.Animations)),
		zap.Strings("extensions_required", doc.ExtensionsRequired),
	)

	i.pipeline.add(StageBuffer, newGLTFBufferLoader(i.ic).task())
	i.pipeline.add(StageTexture, newGLTFTextureDecoder(i.ic).Task())
	i.pipeline.add(StageMaterial, newGLTFMaterialExtractor(i.ic).Task())
	i.pipeline.add(StageMesh, newGLTFMeshExtractor(i.ic).Task())
	i.pipeline.add(StageNode, newGLTFSceneBuilder(i.ic).task())
	i.pipeline.add(StageSkin, newGLTFSkeletonExtractor(i.ic).Task())
	i.pipeline.add(StageMorphTarget, newGLTFMorphExtractor(i.ic).task())
	i.pipeline.add(StageAnimation, newGLTFAnimationExtractor(i.ic).Task())

	i.progress.ReportProgress(StageParse, 1, 1)
	return stepDone
}

// displayName strips directories and the extension from a path-like import name.
// It names the root object.
func displayName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return name
	}
	return base
}

// --- Instrumentation ---

func (i *Import) enterStage(stage Stage) {
	i.profiler.EnterStage(stage.String())
	_, i.stageSpan = i.env.tracer.Start(trace.ContextWithSpan(context.Background(), i.span), "gltf."+stage.String())
	i.logger.Debug("stage started", zap.Stringer("stage", stage))
}

func (i *Import) leaveStage(stage Stage, err error) {
	i.profiler.LeaveStage(err)
	endSpan(i.stageSpan, err)
	i.stageSpan = nil
	if err == nil {
		i.logger.Debug("stage finished", zap.Stringer("stage", stage))
	}
}

func (i *Import) recordUnits(stage Stage, completed, _ int) {
	if stage == i.pipeline.currentStage() {
		i.profiler.Units(completed)
	}
}

func (i *Import) observeTick(d time.Duration, _ ImportState) {
	i.profiler.Tick(d)
	if i.env.observer != nil {
		i.env.observer.ObserveTick(i.name, i.pipeline.currentStage(), d)
	}
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// finish runs once when the scheduler reaches a terminal state.
func (i *Import) finish(state ImportState, err error) {
	if i.finished {
		return
	}
	i.finished = true
	i.err = err

	if i.stageSpan != nil {
		// Cancellation stops the pipeline between units, so the running stage never left.
		i.profiler.LeaveStage(err)
		endSpan(i.stageSpan, err)
		i.stageSpan = nil
	}

	warnings := len(i.Warnings())
	if state == StateDone {
		i.result = i.assemble()
		i.cache.Release()
	}
	endSpan(i.span, err)

	fields := []zap.Field{zap.Stringer("state", state), zap.Int("warnings", warnings)}
	switch state {
	case StateDone:
		fields = append(fields, zap.Int("objects", i.result.ObjectCount()), zap.Int("clips", len(i.result.Animations())))
	default:
		fields = append(fields, zap.Stringer("stage", i.pipeline.currentStage()), zap.Error(err))
	}
	d := i.profiler.Summarize("import finished", fields...)

	if i.env.observer != nil {
		i.env.observer.ObserveImport(i.name, state, d, warnings)
	}
	if i.onFinish != nil {
		i.onFinish(i)
	}
}

// assemble collects the published resources into the model. Every slice is indexed by
// source index; skipped entries are nil.
func (i *Import) assemble() model.Model {
	ic := i.ic
	doc := ic.doc

	meshes := make([][]*model.Geometry, len(doc.Meshes))
	for m := range meshes {
		meshes[m], _ = Lookup[[]*model.Geometry](i.cache, KindMesh, m)
	}
	materials := make([]*common.ImportedMaterial, len(doc.Materials), len(doc.Materials)+1)
	for m := range materials {
		materials[m], _ = Lookup[*common.ImportedMaterial](i.cache, KindMaterial, m)
	}
	if ic.defaultMaterial != nil {
		materials = append(materials, ic.defaultMaterial)
	}
	textures := make([]*common.ImportedTexture, len(doc.Textures))
	for t := range textures {
		textures[t], _ = Lookup[*common.ImportedTexture](i.cache, KindTexture, t)
	}
	skins := make([]*model.Skin, len(doc.Skins))
	for s := range skins {
		skins[s], _ = Lookup[*model.Skin](i.cache, KindSkin, s)
	}
	clips := make([]*model.AnimationClip, len(doc.Animations)+1)
	for a := range clips {
		clips[a], _ = Lookup[*model.AnimationClip](i.cache, KindAnimation, a)
	}
	nodeObjects := make([][]*model.SceneObject, len(doc.Nodes))
	for n := range nodeObjects {
		nodeObjects[n], _ = Lookup[[]*model.SceneObject](i.cache, KindNode, n)
	}

	return model.NewModel(
		model.WithName(i.name),
		model.WithRoot(ic.root),
		model.WithMeshes(meshes),
		model.WithMaterials(materials),
		model.WithTextures(textures),
		model.WithSkins(skins),
		model.WithAnimations(clips),
		model.WithNodeObjects(nodeObjects),
		model.WithWarnings(ic.warnings),
	)
}

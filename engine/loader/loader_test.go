package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-import/engine/config"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// externalScene returns a document whose buffer lives in the file "scene.bin" next to it.
func externalScene(t *testing.T) ([]byte, []byte) {
	t.Helper()
	f := triangleScene()
	f.set("buffers", []any{map[string]any{"uri": "scene.bin", "byteLength": len(f.bin)}})
	return f.json(t), f.bin
}

func zipFiles(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type recordingObserver struct {
	mu       sync.Mutex
	ticks    int
	outcomes []ImportState
	warnings []int
}

func (o *recordingObserver) ObserveTick(string, Stage, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

func (o *recordingObserver) ObserveImport(_ string, state ImportState, _ time.Duration, warnings int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, state)
	o.warnings = append(o.warnings, warnings)
}

func TestLoader_LoadPath(t *testing.T) {
	doc, bin := externalScene(t)
	src := newMemorySource(map[string][]byte{
		"models/scene.gltf": doc,
		"models/scene.bin":  bin,
	})
	l := newTestLoader(WithByteSource(src))

	m, err := l.Load(context.Background(), "models/scene.gltf")
	require.NoError(t, err)
	assert.Equal(t, "scene", m.Root().Name)
	assert.Equal(t, []string{"models/scene.gltf", "models/scene.bin"}, src.refs)

	// A second load is served from the cache.
	again, err := l.Load(context.Background(), "models/scene.gltf")
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Equal(t, int32(2), src.reads.Load())
}

func TestLoader_LoadURLResolvesRelativeReferences(t *testing.T) {
	doc, bin := externalScene(t)
	src := newMemorySource(map[string][]byte{
		"https://example.com/assets/scene.gltf": doc,
		"https://example.com/assets/scene.bin":  bin,
	})
	m, err := newTestLoader(WithByteSource(src)).Load(context.Background(), "https://example.com/assets/scene.gltf")
	require.NoError(t, err)
	assert.Equal(t, "scene", m.Root().Name)
	assert.Equal(t, "https://example.com/assets/scene.bin", src.refs[1])
}

func TestLoader_LoadArchive(t *testing.T) {
	doc, bin := externalScene(t)
	archive := zipFiles(t, map[string][]byte{
		"model/scene.gltf":     doc,
		"model/scene.bin":      bin,
		"model/lod/other.gltf": []byte("not a scene"),
		"readme.txt":           []byte("hello"),
	})
	src := newMemorySource(map[string][]byte{"assets/pack.zip": archive})

	m, err := newTestLoader(WithByteSource(src)).Load(context.Background(), "assets/pack.zip")
	require.NoError(t, err)
	assert.Equal(t, "assets/pack.zip", m.Name())
	assert.Equal(t, "pack", m.Root().Name)
	assert.Equal(t, 3, m.Root().Children[0].Geometry.VertexCount())
	// Only the archive itself goes through the byte source.
	assert.Equal(t, []string{"assets/pack.zip"}, src.refs)
}

func TestLoader_LoadArchiveWithoutScene(t *testing.T) {
	src := newMemorySource(map[string][]byte{
		"empty.zip": zipFiles(t, map[string][]byte{"readme.txt": []byte("hello")}),
		"bad.zip":   []byte("not a zip"),
	})
	l := newTestLoader(WithByteSource(src))

	_, err := l.Load(context.Background(), "empty.zip")
	requireKind(t, err, ErrIO)
	_, err = l.Load(context.Background(), "bad.zip")
	requireKind(t, err, ErrIO)
}

func TestLoader_LoadErrors(t *testing.T) {
	l := newTestLoader(WithByteSource(newMemorySource(nil)))

	_, err := l.Load(context.Background(), "model.obj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model format")

	_, err = l.Load(context.Background(), "missing.gltf")
	requireKind(t, err, ErrIO)

	_, err = l.Begin("empty.gltf", nil)
	requireKind(t, err, ErrParse)
}

func TestLoader_Cache(t *testing.T) {
	l := newTestLoader()
	data := triangleScene().json(t)

	m, err := l.LoadBytes(context.Background(), "a.gltf", data)
	require.NoError(t, err)
	assert.Same(t, m, l.Get("a.gltf"))
	assert.Len(t, l.Models(), 1)

	// Cached models are returned without parsing the data again.
	again, err := l.LoadBytes(context.Background(), "a.gltf", []byte("garbage"))
	require.NoError(t, err)
	assert.Same(t, m, again)

	l.Evict("a.gltf")
	assert.Nil(t, l.Get("a.gltf"))
	assert.Empty(t, l.Models())
}

func TestLoader_WithModel(t *testing.T) {
	pre := model.NewModel(model.WithName("prebuilt"))
	l := newTestLoader(WithModel("prebuilt.glb", pre))
	m, err := l.LoadBytes(context.Background(), "prebuilt.glb", nil)
	require.NoError(t, err)
	assert.Same(t, pre, m)
}

func TestLoader_FailedImportIsNotCached(t *testing.T) {
	l := newTestLoader()
	_, err := l.LoadBytes(context.Background(), "broken.gltf", []byte(`{"asset":{"version":"2.0"}}`))
	requireKind(t, err, ErrInvalidData)
	assert.Nil(t, l.Get("broken.gltf"))
}

func TestLoader_Close(t *testing.T) {
	l := newTestLoader()
	l.Close()
	l.Close()
	_, err := l.Begin("a.gltf", triangleScene().json(t))
	assert.ErrorIs(t, err, errLoaderClosed)
}

func TestLoader_WorkerPool(t *testing.T) {
	settings := config.Default()
	settings.Workers.Count = 2
	doc, bin := externalScene(t)
	src := newMemorySource(map[string][]byte{"scene.bin": bin})

	l := NewLoader(WithSettings(settings), WithByteSource(src))
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m, err := l.LoadBytes(ctx, "scene.gltf", doc)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Root().Children[0].Geometry.VertexCount())
	assert.Equal(t, int32(1), src.reads.Load())
}

// steppingClock advances by step every time it is read.
func steppingClock(step time.Duration) Clock {
	now := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestImport_TickIsProgressive(t *testing.T) {
	observer := &recordingObserver{}
	l := newTestLoader(WithClock(steppingClock(3*time.Millisecond)), WithQuantum(10*time.Millisecond), WithObserver(observer))

	imp, err := l.Begin("walk.gltf", animatedScene().json(t))
	require.NoError(t, err)
	assert.Equal(t, "walk.gltf", imp.Name())
	assert.Equal(t, StateRunning, imp.State())
	assert.Equal(t, StageParse, imp.Stage())

	var states []ImportState
	for {
		state, err := imp.Tick(context.Background())
		require.NoError(t, err)
		states = append(states, state)
		if state.Terminal() {
			break
		}
		assert.Nil(t, imp.Result())
	}

	assert.Greater(t, len(states), 2)
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Equal(t, StageAnimation, imp.Stage())
	require.NotNil(t, imp.Result())
	assert.Same(t, imp.Result(), l.Get("walk.gltf"))
	assert.Len(t, imp.Warnings(), 1)
	assert.Equal(t, len(states), imp.Ticks())

	var stages []string
	for _, s := range imp.Profile() {
		stages = append(stages, s.Name)
		assert.False(t, s.Failed)
	}
	assert.Equal(t, []string{"parse", "buffer", "texture", "material", "mesh", "node", "skin", "morph_target", "animation"}, stages)

	assert.Equal(t, len(states), observer.ticks)
	assert.Equal(t, []ImportState{StateDone}, observer.outcomes)
	assert.Equal(t, []int{1}, observer.warnings)

	// Ticking a finished import is a no-op.
	state, err := imp.Tick(context.Background())
	assert.Equal(t, StateDone, state)
	assert.NoError(t, err)
}

func TestImport_Cancel(t *testing.T) {
	observer := &recordingObserver{}
	l := newTestLoader(WithClock(steppingClock(5*time.Millisecond)), WithQuantum(10*time.Millisecond), WithObserver(observer))
	imp, err := l.Begin("walk.gltf", animatedScene().json(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	state, err := imp.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, StateRunning, state)

	cancel()
	state, err = imp.Tick(ctx)
	assert.Equal(t, StateCancelled, state)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, imp.Err(), ErrCancelled)
	assert.Nil(t, imp.Result())
	assert.Nil(t, l.Get("walk.gltf"))
	assert.Equal(t, []ImportState{StateCancelled}, observer.outcomes)
}

func TestLoadBytes_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := newTestLoader()
	m, err := l.LoadBytes(ctx, "a.gltf", triangleScene().json(t))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, l.Get("a.gltf"))
}

func TestImport_FailureReportsStage(t *testing.T) {
	f := triangleScene()
	f.set("scenes", []any{map[string]any{"nodes": []int{4}}})
	l := newTestLoader()
	imp, err := l.Begin("bad.gltf", f.json(t))
	require.NoError(t, err)

	_, err = imp.Run(context.Background())
	requireKind(t, err, ErrReferenceOutOfRange)
	assert.Equal(t, StateFailed, imp.State())
	assert.Equal(t, StageNode, imp.Stage())
	assert.Same(t, err, imp.Err())

	profile := imp.Profile()
	require.NotEmpty(t, profile)
	assert.True(t, profile[len(profile)-1].Failed)
}

func TestReferenceDir(t *testing.T) {
	assert.Equal(t, "", referenceDir("scene.gltf"))
	assert.Equal(t, "models/fox", referenceDir("models/fox/fox.gltf"))
	assert.Equal(t, "C:/models", referenceDir(`C:\models\scene.gltf`))
	assert.Equal(t, "https://example.com/a/", referenceDir("https://example.com/a/scene.gltf"))
}

func TestResolveReference(t *testing.T) {
	ic := &importContext{baseDir: "https://example.com/a/"}
	assert.Equal(t, "https://example.com/a/tex/b%20c.png", ic.resolveReference("tex/b%20c.png"))
	assert.Equal(t, "https://cdn.example.com/x.bin", ic.resolveReference("https://cdn.example.com/x.bin"))

	ic = &importContext{baseDir: "models"}
	assert.Equal(t, "models/tex/b c.png", ic.resolveReference("tex/b%20c.png"))
	assert.Equal(t, "shared/x.bin", ic.resolveReference("../shared/x.bin"))
	assert.Equal(t, "/abs/x.bin", ic.resolveReference("/abs/x.bin"))
}

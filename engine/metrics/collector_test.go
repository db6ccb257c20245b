package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-import/engine/loader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ReportProgress(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "", nil)

	c.ReportProgress(loader.StageMesh, 0, 4)
	c.ReportProgress(loader.StageMesh, 1, 4)
	c.ReportProgress(loader.StageMesh, 3, 4)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.stageUnits.WithLabelValues("mesh")))
	assert.Equal(t, 0.75, testutil.ToFloat64(c.stageProgress.WithLabelValues("mesh")))

	// A restarted stage counts from zero again.
	c.ReportProgress(loader.StageMesh, 0, 2)
	c.ReportProgress(loader.StageMesh, 2, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.stageUnits.WithLabelValues("mesh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageProgress.WithLabelValues("mesh")))

	// Empty stages report as complete.
	c.ReportProgress(loader.StageSkin, 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageProgress.WithLabelValues("skin")))
}

func TestCollector_ObserveImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "test", nil)

	c.ObserveTick("a.gltf", loader.StageParse, 2*time.Millisecond)
	c.ObserveImport("a.gltf", loader.StateDone, time.Second, 2)
	c.ObserveImport("b.gltf", loader.StateFailed, time.Second, 0)
	c.ObserveImport("c.gltf", loader.StateDone, time.Second, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.warningsTotal))

	n, err := testutil.GatherAndCount(reg, "test_tick_duration_seconds", "test_import_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCollector_WiredIntoLoader(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "", nil)
	l := loader.NewLoader(loader.WithInlineJobs(), loader.WithProgress(c), loader.WithObserver(c))
	defer l.Close()

	doc := []byte(`{"asset":{"version":"2.0"},"scenes":[{"nodes":[0,1]}],"nodes":[{"name":"A"},{"name":"B"}]}`)
	_, err := l.LoadBytes(context.Background(), "empty.gltf", doc)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stageUnits.WithLabelValues("node")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("done")))

	_, err = l.LoadBytes(context.Background(), "broken.gltf", []byte("{"))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.importsTotal.WithLabelValues("failed")))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LoadOption {
	return WithLookupEnv(func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	})
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, 10*time.Millisecond, s.Scheduler.Quantum)
	assert.True(t, s.CacheModels)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  quantum: 4ms
workers:
  count: 0
source:
  base_dir: assets
log:
  level: debug
  format: json
cache_models: false
`), 0o644))

	s, err := Load(WithFile(path), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, 4*time.Millisecond, s.Scheduler.Quantum)
	assert.Equal(t, time.Millisecond, s.Scheduler.IdleWait)
	assert.Equal(t, 0, s.Workers.Count)
	assert.Equal(t, "assets", s.Source.BaseDir)
	assert.Equal(t, "json", s.Log.Format)
	assert.False(t, s.CacheModels)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	s, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  count: 2\n"), 0o644))

	s, err := Load(WithFile(path), envMap(map[string]string{
		"OXY_IMPORT_WORKERS_COUNT":       "8",
		"OXY_IMPORT_SCHEDULER_QUANTUM":   "2ms",
		"OXY_IMPORT_SOURCE_MAX_BYTES":    " 1024 ",
		"OXY_IMPORT_PROFILE_MEMORY":      "true",
		"OXY_IMPORT_LOG_LEVEL":           "warn",
		"OXY_IMPORT_SOURCE_HTTP_TIMEOUT": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, 8, s.Workers.Count)
	assert.Equal(t, 2*time.Millisecond, s.Scheduler.Quantum)
	assert.Equal(t, int64(1024), s.Source.MaxBytes)
	assert.True(t, s.ProfileMemory)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Equal(t, 60*time.Second, s.Source.HTTPTimeout)
}

func TestLoad_CustomPrefix(t *testing.T) {
	s, err := Load(WithEnvPrefix("APP"), envMap(map[string]string{
		"APP_CACHE_MODELS":        "false",
		"OXY_IMPORT_CACHE_MODELS": "true",
	}))
	require.NoError(t, err)
	assert.False(t, s.CacheModels)
}

func TestLoad_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scheduler: [not, a, map"), 0o644))

	tests := []struct {
		name    string
		options []LoadOption
		want    string
	}{
		{"malformed file", []LoadOption{WithFile(bad), envMap(nil)}, "parse settings file"},
		{"bad duration", []LoadOption{envMap(map[string]string{"OXY_IMPORT_SCHEDULER_QUANTUM": "soon"})}, "OXY_IMPORT_SCHEDULER_QUANTUM"},
		{"bad bool", []LoadOption{envMap(map[string]string{"OXY_IMPORT_CACHE_MODELS": "maybe"})}, "OXY_IMPORT_CACHE_MODELS"},
		{"invalid value", []LoadOption{envMap(map[string]string{"OXY_IMPORT_WORKERS_COUNT": "-1"})}, "workers.count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.options...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"zero quantum", func(s *Settings) { s.Scheduler.Quantum = 0 }, "scheduler.quantum"},
		{"negative idle wait", func(s *Settings) { s.Scheduler.IdleWait = -1 }, "scheduler.idle_wait"},
		{"no queue", func(s *Settings) { s.Workers.QueueSize = 0 }, "workers.queue_size"},
		{"no max bytes", func(s *Settings) { s.Source.MaxBytes = 0 }, "source.max_bytes"},
		{"bad level", func(s *Settings) { s.Log.Level = "loud" }, "log.level"},
		{"bad format", func(s *Settings) { s.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	inline := Default()
	inline.Workers.Count = 0
	inline.Workers.QueueSize = 0
	assert.NoError(t, inline.Validate())
}

func TestNewLogger(t *testing.T) {
	s := Default()
	s.Log.Format = "json"
	logger, err := s.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	s.Log.Level = "nope"
	_, err = s.NewLogger()
	assert.Error(t, err)
}

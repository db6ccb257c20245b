// Package config loads import settings: defaults, then an optional YAML file, then
// OXY_IMPORT_* environment overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "OXY_IMPORT"

// Settings configures a Loader.
type Settings struct {
	Scheduler SchedulerSettings `yaml:"scheduler" env:"SCHEDULER"`
	Workers   WorkerSettings    `yaml:"workers" env:"WORKERS"`
	Source    SourceSettings    `yaml:"source" env:"SOURCE"`
	Log       LogSettings       `yaml:"log" env:"LOG"`

	// CacheModels keeps finished models in the Loader's model cache.
	CacheModels bool `yaml:"cache_models" env:"CACHE_MODELS"`

	// ProfileMemory adds allocation and GC figures to the per-import profile.
	ProfileMemory bool `yaml:"profile_memory" env:"PROFILE_MEMORY"`
}

// SchedulerSettings configures the cooperative scheduler.
type SchedulerSettings struct {
	// Quantum is the time budget of one tick.
	Quantum time.Duration `yaml:"quantum" env:"QUANTUM"`

	// IdleWait is how long a blocking import sleeps between ticks.
	IdleWait time.Duration `yaml:"idle_wait" env:"IDLE_WAIT"`
}

// WorkerSettings configures the pool running fetches and decoder jobs.
type WorkerSettings struct {
	// Count is the number of workers, 0 to run jobs inline on the scheduler goroutine.
	Count int `yaml:"count" env:"COUNT"`

	// QueueSize is the pool's task queue capacity.
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`

	// IdleTimeout is passed to the pool for idle workers.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// SourceSettings configures the default byte source.
type SourceSettings struct {
	// BaseDir is the directory relative paths resolve against.
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`

	// HTTPTimeout bounds a single HTTP fetch.
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`

	// MaxBytes caps a single HTTP response.
	MaxBytes int64 `yaml:"max_bytes" env:"MAX_BYTES"`
}

// LogSettings configures the logger built by NewLogger.
type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in settings.
//
// Returns:
//   - Settings: the defaults
func Default() Settings {
	return Settings{
		Scheduler: SchedulerSettings{
			Quantum:  10 * time.Millisecond,
			IdleWait: time.Millisecond,
		},
		Workers: WorkerSettings{
			Count:       4,
			QueueSize:   256,
			IdleTimeout: time.Second,
		},
		Source: SourceSettings{
			HTTPTimeout: 60 * time.Second,
			MaxBytes:    512 << 20,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		CacheModels: true,
	}
}

// LoadOption is a functional option for Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path      string
	envPrefix string
	lookupEnv func(string) (string, bool)
}

// WithFile sets the YAML file read after the defaults. A missing file is not an error.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - LoadOption: a function that applies the path
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithEnvPrefix replaces DefaultEnvPrefix.
//
// Parameters:
//   - prefix: the prefix, without the trailing underscore
//
// Returns:
//   - LoadOption: a function that applies the prefix
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithLookupEnv replaces os.LookupEnv, for tests.
//
// Parameters:
//   - fn: the lookup function
//
// Returns:
//   - LoadOption: a function that applies the lookup
func WithLookupEnv(fn func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) {
		o.lookupEnv = fn
	}
}

// Load builds settings from the defaults, the optional file and the environment, then validates them.
//
// Parameters:
//   - options: load options
//
// Returns:
//   - Settings: the settings
//   - error: error if the file or an override cannot be parsed, or validation fails
func Load(options ...LoadOption) (Settings, error) {
	o := loadOptions{envPrefix: DefaultEnvPrefix, lookupEnv: os.LookupEnv}
	for _, opt := range options {
		opt(&o)
	}

	s := Default()
	if o.path != "" {
		data, err := os.ReadFile(o.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Settings{}, errors.Wrapf(err, "read settings file %s", o.path)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, errors.Wrapf(err, "parse settings file %s", o.path)
			}
		}
	}
	if err := applyEnv(reflect.ValueOf(&s).Elem(), o.envPrefix, o.lookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	switch {
	case s.Scheduler.Quantum <= 0:
		return errors.New("scheduler.quantum must be positive")
	case s.Scheduler.IdleWait < 0:
		return errors.New("scheduler.idle_wait must not be negative")
	case s.Workers.Count < 0:
		return errors.New("workers.count must not be negative")
	case s.Workers.Count > 0 && s.Workers.QueueSize <= 0:
		return errors.New("workers.queue_size must be positive when workers are enabled")
	case s.Source.MaxBytes <= 0:
		return errors.New("source.max_bytes must be positive")
	}
	if _, err := zapcore.ParseLevel(s.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if s.Log.Format != "json" && s.Log.Format != "console" {
		return errors.Errorf("log.format must be json or console, got %q", s.Log.Format)
	}
	return nil
}

// NewLogger builds a zap logger from the log settings.
//
// Returns:
//   - *zap.Logger: the logger
//   - error: error if the logger cannot be built
func (s Settings) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	cfg := zap.NewProductionConfig()
	if s.Log.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}

// applyEnv walks v and overrides every field whose PREFIX_TAG variable is set.
func applyEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		if err := setField(field, strings.TrimSpace(value)); err != nil {
			return errors.Wrapf(err, "environment override %s", key)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	default:
		return errors.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

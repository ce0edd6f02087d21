// Package config loads the live profiler configuration.
//
// Values are layered in this order, later layers winning:
//  1. Built-in defaults (Default).
//  2. YAML file passed with --config.
//  3. LIVE_PROFILER_* environment variables.
//  4. Command line flags explicitly set by the user.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/logging"
	"github.com/coral-mesh/liveprof/internal/safe"
	"github.com/coral-mesh/liveprof/internal/storage"
	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/liveprof"
)

// DefaultAPIURL is the collection API used by the api storage mode.
const DefaultAPIURL = "http://liveprof.org/api"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the live profiler configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Sampling SamplingConfig `yaml:"sampling"`
	Log      LogConfig      `yaml:"log"`
}

// StorageConfig selects where profiles are persisted.
type StorageConfig struct {
	Mode          string        `yaml:"mode" env:"LIVE_PROFILER_MODE"`
	ConnectionURL string        `yaml:"connection_url" env:"LIVE_PROFILER_CONNECTION_URL"`
	APIURL        string        `yaml:"api_url" env:"LIVE_PROFILER_API_URL"`
	APIKey        string        `yaml:"api_key" env:"LIVE_PROFILER_API_KEY"`
	Path          string        `yaml:"path" env:"LIVE_PROFILER_PATH"`
	Codec         string        `yaml:"codec" env:"LIVE_PROFILER_CODEC"`
	Timeout       time.Duration `yaml:"timeout" env:"LIVE_PROFILER_API_TIMEOUT"`
}

// ProfilerConfig controls the enable decision and backend selection.
type ProfilerConfig struct {
	App          string `yaml:"app" env:"LIVE_PROFILER_APP"`
	Label        string `yaml:"label" env:"LIVE_PROFILER_LABEL"`
	Divider      int    `yaml:"divider" env:"LIVE_PROFILER_DIVIDER"`
	TotalDivider int    `yaml:"total_divider" env:"LIVE_PROFILER_TOTAL_DIVIDER"`
	Backend      string `yaml:"backend" env:"LIVE_PROFILER_BACKEND"`
}

// SamplingConfig tunes the sampler and block backends.
type SamplingConfig struct {
	Interval  time.Duration `yaml:"interval" env:"LIVE_PROFILER_SAMPLING_INTERVAL"`
	Depth     int           `yaml:"depth" env:"LIVE_PROFILER_SAMPLING_DEPTH"`
	BlockRate int           `yaml:"block_rate" env:"LIVE_PROFILER_BLOCK_RATE"`
}

// LogConfig configures the log sink.
type LogConfig struct {
	Level  string `yaml:"level" env:"LIVE_PROFILER_LOG_LEVEL"`
	File   string `yaml:"file" env:"LIVE_PROFILER_LOG_FILE"`
	Pretty bool   `yaml:"pretty" env:"LIVE_PROFILER_LOG_PRETTY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Mode:    storage.ModeDB,
			APIURL:  DefaultAPIURL,
			Codec:   codec.NameJSON,
			Timeout: 10 * time.Second,
		},
		Profiler: ProfilerConfig{
			App:          liveprof.DefaultApp,
			Label:        liveprof.DefaultLabel(),
			Divider:      liveprof.DefaultDivider,
			TotalDivider: liveprof.DefaultTotalDivider,
			Backend:      "auto",
		},
		Sampling: SamplingConfig{
			Interval:  backend.DefaultSamplingInterval,
			Depth:     backend.DefaultSamplingDepth,
			BlockRate: 1,
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the environment. Flags are applied separately with ApplyFlags.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := safe.ReadFile(path, &safe.ReadOptions{MaxSize: 1 << 20, AllowSymlinks: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Mode) {
	case storage.ModeDB:
	case storage.ModeFiles:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required in files mode"))
		}
	case storage.ModeAPI:
		if c.Storage.APIURL == "" {
			errs = append(errs, errors.New("storage.api_url is required in api mode"))
		}
		if c.Storage.APIKey == "" {
			errs = append(errs, errors.New("storage.api_key is required in api mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.mode %q is not one of db, files, api", c.Storage.Mode))
	}
	if _, err := codec.New(c.Storage.Codec); err != nil {
		errs = append(errs, fmt.Errorf("storage.codec: %w", err))
	}
	if c.Storage.Timeout < 0 {
		errs = append(errs, errors.New("storage.timeout must not be negative"))
	}

	if c.Profiler.App == "" {
		errs = append(errs, errors.New("profiler.app must not be empty"))
	}
	if c.Profiler.Divider < 1 {
		errs = append(errs, fmt.Errorf("profiler.divider must be at least 1, got %d", c.Profiler.Divider))
	}
	if c.Profiler.TotalDivider < 1 {
		errs = append(errs, fmt.Errorf("profiler.total_divider must be at least 1, got %d", c.Profiler.TotalDivider))
	}
	if _, err := backend.ParseKind(c.Profiler.Backend); err != nil {
		errs = append(errs, fmt.Errorf("profiler.backend: %w", err))
	}

	if c.Sampling.Interval < 0 {
		errs = append(errs, errors.New("sampling.interval must not be negative"))
	}
	if c.Sampling.Depth < 0 {
		errs = append(errs, errors.New("sampling.depth must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// StorageSettings returns the storage constructor settings.
func (c *Config) StorageSettings() storage.Config {
	return storage.Config{
		Mode:          c.Storage.Mode,
		ConnectionURL: c.Storage.ConnectionURL,
		Path:          c.Storage.Path,
		APIURL:        c.Storage.APIURL,
		APIKey:        c.Storage.APIKey,
		Timeout:       c.Storage.Timeout,
	}
}

// BackendOptions returns the options of the default backend candidates.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		SamplingInterval: c.Sampling.Interval,
		SamplingDepth:    c.Sampling.Depth,
		BlockProfileRate: c.Sampling.BlockRate,
	}
}

// ProfilerSettings returns the profiler configuration without storage and
// logger, which the caller wires in.
func (c *Config) ProfilerSettings() (liveprof.Config, error) {
	kind, err := backend.ParseKind(c.Profiler.Backend)
	if err != nil {
		return liveprof.Config{}, err
	}
	return liveprof.Config{
		App:          c.Profiler.App,
		Label:        c.Profiler.Label,
		Divider:      c.Profiler.Divider,
		TotalDivider: c.Profiler.TotalDivider,
		Backend:      kind,
		Backends:     c.BackendOptions(),
	}, nil
}

// Logging returns the log sink configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		File:   c.Log.File,
	}
}

package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/config"
	"github.com/coral-mesh/liveprof/internal/logging"
	"github.com/coral-mesh/liveprof/internal/storage"
	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/liveprof"
)

// FlagConfig is the persistent flag naming the YAML configuration file.
const FlagConfig = "config"

// ConfigPath returns the --config value, or "" when the command has no such flag.
func ConfigPath(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup(FlagConfig)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// LoadConfig resolves the configuration of cmd: defaults, the --config file,
// the environment and finally the flags set on the command line.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(ConfigPath(cmd))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to apply flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Runtime is a profiler wired to the configured storage and log sink.
type Runtime struct {
	Logger   zerolog.Logger
	Profiler *liveprof.Profiler

	logCloser io.Closer
}

// NewRuntime builds the log sink, codec, storage and profiler described by
// cfg. Logs go to logOut. tracer may be nil.
func NewRuntime(cfg *config.Config, logOut io.Writer, tracer *backend.Tracer, opts ...liveprof.Option) (*Runtime, error) {
	logCfg := cfg.Logging()
	logCfg.Output = logOut
	logger, logCloser, err := logging.Open(logCfg)
	if err != nil {
		return nil, err
	}

	rt, err := newRuntime(cfg, logger, tracer, opts)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	rt.logCloser = logCloser
	return rt, nil
}

func newRuntime(cfg *config.Config, logger zerolog.Logger, tracer *backend.Tracer, opts []liveprof.Option) (*Runtime, error) {
	packer, err := codec.New(cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.StorageSettings(), packer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.Storage.Mode, err)
	}

	settings, err := cfg.ProfilerSettings()
	if err != nil {
		return nil, err
	}
	settings.Storage = store
	settings.Logger = logger
	settings.Backends.Tracer = tracer

	return &Runtime{
		Logger:   logger,
		Profiler: liveprof.New(settings, opts...),
	}, nil
}

// Close ends any running session and releases the storage and the log file.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.Profiler.Close(ctx)
	if r.logCloser != nil {
		err = errors.Join(err, r.logCloser.Close())
	}
	return err
}

// Package storage persists finished profiles. Three interchangeable
// implementations exist: a DuckDB structured store, a filesystem writer and
// an HTTP API sender. All of them pack the data with a codec.Packer before it
// leaves the process.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/pkg/liveprof"
)

// Storage modes.
const (
	ModeDB    = "db"
	ModeFiles = "files"
	ModeAPI   = "api"
)

// Config selects and configures a storage.
type Config struct {
	// Mode is one of ModeDB, ModeFiles or ModeAPI.
	Mode string

	// ConnectionURL locates the DuckDB database (ModeDB).
	ConnectionURL string

	// Path is the root directory of profile files (ModeFiles).
	Path string

	// APIURL and APIKey address the collection API (ModeAPI).
	APIURL string
	APIKey string

	// Timeout bounds a single API request (default: 10s).
	Timeout time.Duration

	// MaxElapsed bounds the API retries of one save (default: 30s).
	MaxElapsed time.Duration
}

// New creates the storage selected by cfg.Mode. On a configuration error the
// error is logged and returned together with an Unavailable storage, so the
// profiler keeps running and every save fails.
func New(cfg Config, packer codec.Packer, logger zerolog.Logger) (liveprof.Storage, error) {
	s, err := newStorage(cfg, packer, logger)
	if err != nil {
		logger.Error().
			Err(err).
			Str("mode", cfg.Mode).
			Msg("Profile storage is not usable, profiles will not be saved")
		return NewUnavailable(err), err
	}
	return s, nil
}

func newStorage(cfg Config, packer codec.Packer, logger zerolog.Logger) (liveprof.Storage, error) {
	if packer == nil {
		return nil, fmt.Errorf("no codec configured")
	}

	switch strings.ToLower(cfg.Mode) {
	case ModeDB, "":
		return NewDB(cfg.ConnectionURL, packer, logger)
	case ModeFiles:
		return NewFiles(cfg.Path, packer, logger)
	case ModeAPI:
		return NewAPI(APIConfig{
			URL:        cfg.APIURL,
			Key:        cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxElapsed: cfg.MaxElapsed,
		}, packer, logger)
	default:
		return nil, fmt.Errorf("unknown storage mode %q (valid: %s, %s, %s)", cfg.Mode, ModeDB, ModeFiles, ModeAPI)
	}
}

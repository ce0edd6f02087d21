package duckdb

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/cli/helpers"
	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/config"
	"github.com/coral-mesh/liveprof/internal/errors"
	"github.com/coral-mesh/liveprof/internal/logging"
	"github.com/coral-mesh/liveprof/internal/storage"
)

// NewInitDBCmd creates the command preparing the profile database.
func NewInitDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the profile table in DuckDB",
		Long: `Create the "details" table and its index in the DuckDB database used in db
mode. Existing tables are left untouched, so the command can be run again.

The database is taken from --connection-url, the LIVE_PROFILER_CONNECTION_URL
environment variable or the configuration file.

Examples:
  liveprof init-db --connection-url duckdb:///var/lib/liveprof/profiles.db
  LIVE_PROFILER_CONNECTION_URL=duckdb://profiles.db liveprof init-db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.ConnectionURL == "" {
				return fmt.Errorf("--%s is required, an in-memory database would be discarded", config.FlagConnectionURL)
			}

			logCfg := cfg.Logging()
			logCfg.Output = cmd.ErrOrStderr()
			logger := logging.New(logCfg)

			packer, err := codec.New(cfg.Storage.Codec)
			if err != nil {
				return err
			}
			db, err := storage.NewDB(cfg.Storage.ConnectionURL, packer, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, db, "failed to close profile database")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := db.CreateTable(ctx); err != nil {
				return fmt.Errorf("failed to create profile table: %w", err)
			}

			cmd.Printf("Profile table ready in %s\n", cfg.Storage.ConnectionURL)
			return nil
		},
	}

	cmd.Flags().String(config.FlagConnectionURL, "", "DuckDB connection URL (duckdb://path)")
	cmd.Flags().String(config.FlagCodec, codec.NameJSON, "Payload codec (json, zstd)")
	cmd.Flags().String(config.FlagLogLevel, "warn", "Log level (trace, debug, info, warn, error)")

	return cmd
}

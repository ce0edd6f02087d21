package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/cli/helpers"
	"github.com/coral-mesh/liveprof/internal/config"
	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/liveprof"
)

// NewDemoCmd creates the command profiling a built-in workload.
func NewDemoCmd() *cobra.Command {
	var (
		runs        int
		work        time.Duration
		top         int
		format      string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Profile a built-in workload",
		Long: `Run a small request handler several times under the live profiler and
print the call graph of the last profiled run.

Profiles are stored like in an instrumented program, following the
configuration file, the LIVE_PROFILER_* environment and the flags below.
Unlike a real program, demo profiles every run unless --divider is given.

Examples:
  # Profile into an in-memory DuckDB and print the result
  liveprof demo

  # Store one profile in three with the tracer backend
  liveprof demo --mode files --path ./profiles --divider 3 --runs 10 --backend tracer

  # Export the session metrics
  liveprof demo --metrics-file ./liveprof.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if err := helpers.ValidateFormat(format, showFormats); err != nil {
				return err
			}
			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}

			cfg, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed(config.FlagDivider) {
				cfg.Profiler.Divider = 1
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			reg := prometheus.NewRegistry()
			tracer := backend.NewTracer()
			rt, err := helpers.NewRuntime(cfg, cmd.ErrOrStderr(), tracer, liveprof.WithRegisterer(reg))
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(ctx); err != nil {
					rt.Logger.Warn().Err(err).Msg("Failed to close profiler")
				}
			}()

			p := rt.Profiler
			if p.Backend() == nil {
				return fmt.Errorf("no profiling backend is available")
			}

			w := newWorkload(tracer, work)
			profiled := 0
			for i := 0; i < runs; i++ {
				before := p.SessionID()
				if err := p.Run(ctx, w.handle); err != nil {
					return err
				}
				if p.SessionID() != before {
					profiled++
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d runs, %d profiled with the %s backend (app %q, label %q, %s storage)\n",
				runs, profiled, p.Backend().Kind(), p.App(), p.Label(), cfg.Storage.Mode)

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
			}

			data := p.LastProfileData()
			if len(data) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No profile captured")
				return nil
			}
			return formatter.Format(rowsOf(data, top), cmd.OutOrStdout())
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().Lookup(config.FlagDivider).DefValue = "1"
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of workload executions")
	cmd.Flags().DurationVar(&work, "work", 100*time.Millisecond, "Duration of one execution")
	cmd.Flags().IntVarP(&top, "top", "n", 15, "Number of entries to print, 0 for all")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write the session metrics in Prometheus text format to this file")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, showFormats)

	return cmd
}

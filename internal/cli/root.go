package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/cli/duckdb"
	"github.com/coral-mesh/liveprof/internal/cli/helpers"
	"github.com/coral-mesh/liveprof/internal/cli/profile"
	"github.com/coral-mesh/liveprof/pkg/version"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveprof",
		Short: "liveprof - sampled live profiling for Go programs",
		Long: `Profile a small, random share of a program's executions in production and
store the call graphs for later analysis.

Programs embed the liveprof package; this tool runs a demo workload,
prepares the profile database and prints stored profiles.

Configuration is read from --config, then LIVE_PROFILER_* environment
variables, then command flags.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(helpers.FlagConfig, "", "Path to a YAML configuration file")

	cmd.AddCommand(profile.NewDemoCmd())
	cmd.AddCommand(profile.NewShowCmd())
	cmd.AddCommand(profile.NewBackendsCmd())
	cmd.AddCommand(duckdb.NewInitDBCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("liveprof version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

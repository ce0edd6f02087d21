package profile

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/cli/helpers"
	"github.com/coral-mesh/liveprof/pkg/backend"
)

type backendRow struct {
	Kind      backend.Kind `header:"BACKEND" json:"kind"`
	Available bool         `header:"AVAILABLE" json:"available"`
	Selected  bool         `header:"AUTO" json:"selected"`
}

// NewBackendsCmd creates the command listing the profiling backends.
func NewBackendsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List the profiling backends usable in this process",
		Long: `List the profiling backends in detection order, whether each one is
available and which one automatic detection selects.

The tracer backend only exists in programs that instrument their code, so it
is never listed here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			candidates := backend.Defaults(cfg.BackendOptions())
			return formatter.Format(backendRows(candidates), cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, showFormats)

	return cmd
}

func backendRows(candidates []backend.Variant) []backendRow {
	selected := backend.Detect(candidates)
	rows := make([]backendRow, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, backendRow{
			Kind:      c.Kind(),
			Available: c.Available(),
			Selected:  c == selected,
		})
	}
	return rows
}

package profile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/liveprof/internal/cli/helpers"
	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/safe"
	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

var showFormats = []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

// NewShowCmd creates the command printing a profile file.
func NewShowCmd() *cobra.Command {
	var (
		format string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a stored profile",
		Long: `Decode a profile file and print its heaviest calls by wall time.

Files written in files mode are decoded by extension (.json, .json.zst).
Go pprof profiles (.pprof, .pb.gz) are converted to the same call graph.

Examples:
  # Top 20 calls of a stored profile
  liveprof show ./profiles/Default/d29ya2Vy/1760781600.json

  # Every entry as JSON
  liveprof show profile.json.zst --top 0 -o json

  # A block profile taken with go test -blockprofile
  liveprof show block.pprof`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, showFormats); err != nil {
				return err
			}
			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}

			data, err := readProfile(args[0])
			if err != nil {
				return err
			}

			root := data[profiledata.RootKey]
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d entries, root %d calls\n",
				filepath.Base(args[0]), len(data), root.Count)

			return formatter.Format(rowsOf(data, top), cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, showFormats)
	cmd.Flags().IntVarP(&top, "top", "n", 20, "Number of entries to print, 0 for all")

	return cmd
}

func isPprof(path string) bool {
	return strings.HasSuffix(path, ".pprof") || strings.HasSuffix(path, ".pb.gz")
}

// readProfile loads and validates the profile stored at path.
func readProfile(path string) (profiledata.Data, error) {
	raw, err := safe.ReadFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if isPprof(path) {
		return backend.ParsePprof(bytes.NewReader(raw))
	}

	packer, err := codec.ForFile(path)
	if err != nil {
		return nil, err
	}
	data, err := packer.Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

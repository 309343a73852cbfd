package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tz301/kaldi-onnx-tf/internal/cache"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	CachePath string
	Limit     int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "conversion ledger database path")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows to show (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fail(formatter, err)
	}
	if !cmd.Flags().Changed("cache") {
		opts.CachePath = cfg.CachePath
	}
	if opts.CachePath == "" {
		err := fmt.Errorf("no ledger configured: pass --cache or set cache_path in the config file")
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeConfig, err)
	}
	if _, err := os.Stat(opts.CachePath); err != nil {
		return fail(formatter, err)
	}

	ledger, err := cache.Open(opts.CachePath)
	if err != nil {
		return fail(formatter, err)
	}
	defer ledger.Close()

	rows, err := ledger.History(cmd.Context(), opts.Limit)
	if err != nil {
		return fail(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No conversions recorded.")
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(formatter.Writer, "%s  %-4s  %s -> %s  (context %d/%d, chunk %d, opset %d, %d nodes)\n",
			row.CreatedAt.Format("2006-01-02 15:04:05"), row.Target, shortDigest(row.ModelDigest),
			row.ArtifactPath, row.Context.Left, row.Context.Right, row.ChunkSize, row.Opset,
			row.NodeCount)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tz301/kaldi-onnx-tf/internal/chunk"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Left      int
	Right     int
	ChunkSize int
	Length    int
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the chunk plan for an utterance length",
		Long: `Compute how an utterance is split into fixed-size chunks: which input
frames each chunk reads, and how much zero padding the edges need.
The same arithmetic a runtime applies at inference time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Left, "left-context", 0, "left context in frames")
	cmd.Flags().IntVar(&opts.Right, "right-context", 0, "right context in frames")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "output frames per chunk")
	cmd.Flags().IntVar(&opts.Length, "length", 0, "utterance length in frames")
	_ = cmd.MarkFlagRequired("length")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fail(formatter, err)
	}
	if !cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = cfg.ChunkSize
	}

	plan, err := chunk.Build(opts.Length, opts.ChunkSize, ir.Context{Left: opts.Left, Right: opts.Right})
	if err != nil {
		return fail(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(plan)
	}

	fmt.Fprintf(formatter.Writer, "%d frame(s), %d per chunk, context left=%d right=%d\n\n",
		plan.Length, plan.Size, plan.Context.Left, plan.Context.Right)
	fmt.Fprintf(formatter.Writer, "  %-5s %-12s %-12s %s\n", "chunk", "out", "in", "pad")
	for i, c := range plan.Chunks {
		fmt.Fprintf(formatter.Writer, "  %-5d [%d,%d)      [%d,%d)      left=%d right=%d\n",
			i, c.OutBegin, c.OutEnd, c.InBegin, c.InEnd, c.LeftPad, c.RightPad)
	}
	return nil
}

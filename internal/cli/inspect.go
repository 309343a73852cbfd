package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tz301/kaldi-onnx-tf/internal/convert"
	"github.com/tz301/kaldi-onnx-tf/internal/emit"
	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
	"github.com/tz301/kaldi-onnx-tf/internal/optimize"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Target string
	Length int
	Opset  int
	Left   int
	Right  int
	Dump   bool
}

// InspectResult summarizes a model without converting it.
type InspectResult struct {
	ModelDigest string         `json:"model_digest"`
	Context     ir.Context     `json:"context"`
	Inputs      []PortInfo     `json:"inputs"`
	Outputs     []PortInfo     `json:"outputs"`
	Nodes       int            `json:"nodes"`
	OpCounts    map[string]int `json:"op_counts"`
	Stats       optimize.Stats `json:"optimizer"`
}

// PortInfo describes one declared input or output.
type PortInfo struct {
	Name string `json:"name"`
	Dim  int    `json:"dim"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <model.txt>",
		Short: "Analyze a model without converting it",
		Long: `Parse an nnet3 model, infer its temporal context, and summarize the
optimized graph. With --dump, print the full lowered graph in a stable
text form instead of the summary.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "target used for lowering, onnx or tf")
	cmd.Flags().IntVar(&opts.Length, "length", 0, "utterance length for static shapes (0 = dynamic)")
	cmd.Flags().IntVar(&opts.Opset, "opset", 0, "ONNX opset to declare")
	cmd.Flags().IntVar(&opts.Left, "left-context", 0, "declared left context to verify against the model")
	cmd.Flags().IntVar(&opts.Right, "right-context", 0, "declared right context to verify against the model")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "print the full lowered graph")

	return cmd
}

func runInspect(opts *InspectOptions, modelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fail(formatter, err)
	}
	if !cmd.Flags().Changed("target") {
		opts.Target = cfg.Target
	}
	if !cmd.Flags().Changed("opset") {
		opts.Opset = cfg.Opset
	}
	target, err := emit.ParseTarget(opts.Target)
	if err != nil {
		return fail(formatter, err)
	}

	data, err := os.ReadFile(modelPath)
	if err != nil {
		return fail(formatter, err)
	}

	net, err := nnet3.Parse(string(data))
	if err != nil {
		return fail(formatter, err)
	}
	g, err := graph.Build(net)
	if err != nil {
		return fail(formatter, err)
	}
	var context ir.Context
	if cmd.Flags().Changed("left-context") || cmd.Flags().Changed("right-context") {
		declared := ir.Context{Left: opts.Left, Right: opts.Right}
		if err := graph.Analyze(g, declared); err != nil {
			return fail(formatter, err)
		}
		context = g.Context
		formatter.VerboseLog("Verified context: left=%d right=%d", context.Left, context.Right)
	} else {
		context = graph.Infer(g)
		formatter.VerboseLog("Inferred context: left=%d right=%d", context.Left, context.Right)
	}

	stats, err := optimize.Run(g)
	if err != nil {
		return fail(formatter, err)
	}

	tg, err := emit.Build(g, emit.Options{
		Target:      target,
		Length:      opts.Length,
		Opset:       int64(opts.Opset),
		Producer:    convert.ToolName,
		Version:     convert.ToolVersion,
		ModelDigest: ir.ModelDigest(data),
	})
	if err != nil {
		return fail(formatter, err)
	}

	if opts.Dump {
		fmt.Fprint(formatter.Writer, emit.Dump(tg))
		return nil
	}

	return outputInspectResult(formatter, summarize(g, data, context, stats))
}

func summarize(g *ir.Graph, data []byte, context ir.Context, stats optimize.Stats) *InspectResult {
	result := &InspectResult{
		ModelDigest: ir.ModelDigest(data),
		Context:     context,
		Nodes:       g.Len(),
		OpCounts:    map[string]int{},
		Stats:       stats,
	}
	for _, id := range g.Inputs {
		n := g.Node(id)
		result.Inputs = append(result.Inputs, PortInfo{Name: n.Name, Dim: n.Dim})
	}
	for _, id := range g.Outputs {
		n := g.Node(id)
		result.Outputs = append(result.Outputs, PortInfo{Name: n.Name, Dim: n.Dim})
	}
	for _, id := range g.IDs() {
		result.OpCounts[string(g.Node(id).Kind)]++
	}
	return result
}

func outputInspectResult(formatter *OutputFormatter, result *InspectResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "model %s\n\n", shortDigest(result.ModelDigest))
	fmt.Fprintf(formatter.Writer, "  context: left=%d right=%d\n", result.Context.Left, result.Context.Right)
	for _, p := range result.Inputs {
		fmt.Fprintf(formatter.Writer, "  input:   %s dim=%d\n", p.Name, p.Dim)
	}
	for _, p := range result.Outputs {
		fmt.Fprintf(formatter.Writer, "  output:  %s dim=%d\n", p.Name, p.Dim)
	}
	fmt.Fprintf(formatter.Writer, "  nodes:   %d\n", result.Nodes)

	ops := make([]string, 0, len(result.OpCounts))
	for op := range result.OpCounts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(formatter.Writer, "    %-12s %d\n", op, result.OpCounts[op])
	}
	return nil
}

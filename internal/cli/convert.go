package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tz301/kaldi-onnx-tf/internal/convert"
	"github.com/tz301/kaldi-onnx-tf/internal/emit"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Output    string
	Target    string
	Left      int
	Right     int
	ChunkSize int
	Length    int
	Opset     int
	CachePath string
	Force     bool
	NoCache   bool
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <model.txt>",
		Short: "Convert an nnet3 model to a target graph",
		Long: `Convert a Kaldi nnet3 text config to an ONNX model or TensorFlow GraphDef.

The declared left and right context must match what the network's splice
structure requires; a mismatch rejects the model. With --cache, completed
conversions are recorded and identical reruns are skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default: model path with target extension)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "output container, onnx or tf")
	cmd.Flags().IntVar(&opts.Left, "left-context", 0, "declared left context in frames")
	cmd.Flags().IntVar(&opts.Right, "right-context", 0, "declared right context in frames")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "output frames per chunk")
	cmd.Flags().IntVar(&opts.Length, "length", 0, "utterance length for static shapes (0 = dynamic)")
	cmd.Flags().IntVar(&opts.Opset, "opset", 0, "ONNX opset to declare")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "conversion ledger database path")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "reconvert even when the ledger has this conversion")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the conversion ledger for this run")

	return cmd
}

// resolveConvertOptions layers flag values over the config file: a flag
// the user set wins, an unset flag falls back to the file or defaults.
func resolveConvertOptions(opts *ConvertOptions, cmd *cobra.Command) (convert.Options, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return convert.Options{}, err
	}

	if !cmd.Flags().Changed("target") {
		opts.Target = cfg.Target
	}
	if !cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = cfg.ChunkSize
	}
	if !cmd.Flags().Changed("opset") {
		opts.Opset = cfg.Opset
	}
	if !cmd.Flags().Changed("cache") {
		opts.CachePath = cfg.CachePath
	}

	target, err := emit.ParseTarget(opts.Target)
	if err != nil {
		return convert.Options{}, err
	}

	return convert.Options{
		Target:    target,
		Context:   ir.Context{Left: opts.Left, Right: opts.Right},
		ChunkSize: opts.ChunkSize,
		Length:    opts.Length,
		Opset:     opts.Opset,
		CachePath: opts.CachePath,
		Force:     opts.Force,
		NoCache:   opts.NoCache,
	}, nil
}

// defaultOutputPath derives the artifact path from the model path: the
// extension is replaced with .onnx or .pb.
func defaultOutputPath(modelPath string, target emit.Target) string {
	base := strings.TrimSuffix(modelPath, ".txt")
	if target == emit.TargetTF {
		return base + ".pb"
	}
	return base + ".onnx"
}

func runConvert(opts *ConvertOptions, modelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	runOpts, err := resolveConvertOptions(opts, cmd)
	if err != nil {
		return fail(formatter, err)
	}
	runOpts.ModelPath = modelPath
	runOpts.OutputPath = opts.Output
	if runOpts.OutputPath == "" {
		runOpts.OutputPath = defaultOutputPath(modelPath, runOpts.Target)
	}

	formatter.VerboseLog("Converting %s to %s (context %d/%d, chunk %d)",
		modelPath, runOpts.Target, runOpts.Context.Left, runOpts.Context.Right, runOpts.ChunkSize)

	result, err := convert.Run(cmd.Context(), runOpts)
	if err != nil {
		return fail(formatter, err)
	}

	return outputConvertResult(formatter, result)
}

// shortDigest abbreviates a hex digest for text output.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func outputConvertResult(formatter *OutputFormatter, result *convert.Result) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.Cached {
		fmt.Fprintf(formatter.Writer, "✓ Cached: model %s already converted to %s\n",
			shortDigest(result.ModelDigest), result.OutputPath)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✓ Converted to %s\n\n", result.OutputPath)
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, "  run:     %s\n", result.RunID)
	}
	fmt.Fprintf(formatter.Writer, "  model:   %s\n", shortDigest(result.ModelDigest))
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", shortDigest(result.Fingerprint))
	fmt.Fprintf(formatter.Writer, "  target:  %s\n", result.Target)
	fmt.Fprintf(formatter.Writer, "  context: left=%d right=%d\n", result.Context.Left, result.Context.Right)
	fmt.Fprintf(formatter.Writer, "  nodes:   %d\n", result.Nodes)
	if result.Plan != nil {
		fmt.Fprintf(formatter.Writer, "  chunks:  %d (%d frames each)\n",
			len(result.Plan.Chunks), result.Plan.Size)
	}
	if result.Stats.Changed() {
		fmt.Fprintf(formatter.Writer,
			"  optimizer: %d identities folded, %d offsets merged, %d splices formed, "+
				"%d batchnorms fused, %d activations fused, %d nodes eliminated\n",
			result.Stats.IdentitiesFolded, result.Stats.OffsetsMerged, result.Stats.SplicesFormed,
			result.Stats.BatchNormsFused, result.Stats.ActivationsFused, result.Stats.NodesEliminated)
	}
	if result.CacheDegraded {
		fmt.Fprintln(formatter.Writer, "  warning: conversion ledger unavailable, run not recorded")
	}
	return nil
}

// Package cli wires the conversion pipeline to the command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tz301/kaldi-onnx-tf/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// LoadConfig resolves the effective configuration: the --config file when
// given, built-in defaults otherwise.
func (o *RootOptions) LoadConfig() (config.Config, error) {
	if o.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command for the converter CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kaldi-onnx-tf",
		Short: "Convert Kaldi nnet3 models to ONNX or TensorFlow graphs",
		Long: "Compile Kaldi nnet3 text configs into portable inference graphs.\n\n" +
			"The converter parses the network, resolves descriptors, checks the\n" +
			"temporal context, and emits an ONNX model or TensorFlow GraphDef.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "CUE config file with conversion defaults")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

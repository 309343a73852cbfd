// Package config loads tool configuration from a CUE file and applies
// defaults. Command-line flags override whatever the file sets; the file
// exists so conversion parameters can be checked in next to the models
// they belong to.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/tz301/kaldi-onnx-tf/internal/emit"
)

// Config holds the conversion parameters a config file may set.
type Config struct {
	// Target is the output container, "onnx" or "tf".
	Target string `json:"target"`

	// ChunkSize is the number of output frames per chunk.
	ChunkSize int `json:"chunk_size"`

	// Opset is the ONNX opset to declare.
	Opset int `json:"opset"`

	// CachePath is the conversion ledger database; empty disables the
	// ledger.
	CachePath string `json:"cache_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Target:    string(emit.TargetONNX),
		ChunkSize: 21,
		Opset:     emit.DefaultOpset,
	}
}

// ConfigError reports a single invalid or malformed configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: field %s: %s", e.Field, e.Message)
}

// Load reads a CUE config file and unifies it over the defaults. Fields
// the file does not mention keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &ConfigError{Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cfg, &ConfigError{Message: fmt.Sprintf("compiling %s: %v", path, err)}
	}

	if err := readString(value, "target", &cfg.Target); err != nil {
		return cfg, err
	}
	if err := readInt(value, "chunk_size", &cfg.ChunkSize); err != nil {
		return cfg, err
	}
	if err := readInt(value, "opset", &cfg.Opset); err != nil {
		return cfg, err
	}
	if err := readString(value, "cache_path", &cfg.CachePath); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field ranges; it applies to flag-assembled configs as
// well as loaded ones.
func (c Config) Validate() error {
	if _, err := emit.ParseTarget(c.Target); err != nil {
		return &ConfigError{Field: "target", Message: err.Error()}
	}
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk_size", Message: fmt.Sprintf("must be positive, got %d", c.ChunkSize)}
	}
	if c.Opset < 11 || c.Opset > 21 {
		return &ConfigError{Field: "opset", Message: fmt.Sprintf("must be between 11 and 21, got %d", c.Opset)}
	}
	return nil
}

func readString(v cue.Value, field string, dst *string) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}
	s, err := fv.String()
	if err != nil {
		return &ConfigError{Field: field, Message: fmt.Sprintf("want string: %v", err)}
	}
	*dst = s
	return nil
}

func readInt(v cue.Value, field string, dst *int) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}
	n, err := fv.Int64()
	if err != nil {
		return &ConfigError{Field: field, Message: fmt.Sprintf("want integer: %v", err)}
	}
	*dst = int(n)
	return nil
}

// Package harness runs YAML-defined conversion scenarios through the
// real pipeline and checks the outcome: the inferred context, the chunk
// plan, the lowered ops, or an expected rejection. Golden files pin the
// full lowered graph for end-to-end scenarios.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conversion test case.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is inline nnet3 model text. Exactly one of Model and
	// ModelFile must be set.
	Model string `yaml:"model,omitempty"`

	// ModelFile is a model path relative to the scenario file.
	ModelFile string `yaml:"model_file,omitempty"`

	// Target is the output container, "onnx" or "tf".
	Target string `yaml:"target"`

	// Context declares the expected context pair. When omitted the
	// pipeline infers it instead of checking it.
	Context *ContextPair `yaml:"context,omitempty"`

	// ChunkSize and Length control the chunk plan; Length zero skips it
	// and emits dynamic shapes.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	Length    int `yaml:"length,omitempty"`

	Opset int `yaml:"opset,omitempty"`

	// Error, when set, means the pipeline must reject the model with an
	// error whose message contains this substring.
	Error string `yaml:"error,omitempty"`

	// Expect checks properties of a successful run.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// ContextPair mirrors ir.Context in scenario YAML.
type ContextPair struct {
	Left  int `yaml:"left"`
	Right int `yaml:"right"`
}

// Expectation lists checks applied after a successful conversion.
type Expectation struct {
	// Context is the context pair the pipeline must infer.
	Context *ContextPair `yaml:"context,omitempty"`

	// Chunks is the expected chunk count; zero means unchecked.
	Chunks int `yaml:"chunks,omitempty"`

	// Ops maps target op types to expected counts in the lowered graph.
	Ops map[string]int `yaml:"ops,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.ModelFile != "" && !filepath.IsAbs(scenario.ModelFile) {
		scenario.ModelFile = filepath.Join(filepath.Dir(path), scenario.ModelFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario under dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and coherent.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Model == "" && s.ModelFile == "":
		return fmt.Errorf("one of model or model_file is required")
	case s.Model != "" && s.ModelFile != "":
		return fmt.Errorf("model and model_file are mutually exclusive")
	}
	if s.ModelFile != "" {
		if _, err := os.Stat(s.ModelFile); err != nil {
			return fmt.Errorf("model file not found: %s", s.ModelFile)
		}
	}

	if s.Target != "onnx" && s.Target != "tf" {
		return fmt.Errorf("target must be onnx or tf, got %q", s.Target)
	}

	if s.Error != "" && s.Expect != nil {
		return fmt.Errorf("error and expect are mutually exclusive")
	}
	if s.Error == "" && s.Expect == nil {
		return fmt.Errorf("one of error or expect is required")
	}

	if s.Length > 0 && s.ChunkSize <= 0 && s.Error == "" {
		return fmt.Errorf("chunk_size is required when length is set")
	}
	return nil
}

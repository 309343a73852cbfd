package harness

import (
	"fmt"
	"os"
	"strings"

	"github.com/tz301/kaldi-onnx-tf/internal/chunk"
	"github.com/tz301/kaldi-onnx-tf/internal/emit"
	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
	"github.com/tz301/kaldi-onnx-tf/internal/optimize"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass is true when the pipeline outcome matched the scenario.
	Pass bool

	// Dump is the stable text rendering of the lowered graph; empty when
	// the pipeline rejected the model.
	Dump string

	Context ir.Context
	Plan    *chunk.Plan

	// OpCounts maps target op types to how often they were emitted.
	OpCounts map[string]int

	// Err is the pipeline error, expected or not.
	Err error

	// Failures lists every expectation that did not hold.
	Failures []string
}

func (r *Result) fail(format string, args ...interface{}) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario through the real pipeline: parse, build,
// context analysis, chunk planning, optimization, lowering. It never
// touches disk beyond reading the model file.
func Run(scenario *Scenario) (*Result, error) {
	result := &Result{Pass: true}

	text := scenario.Model
	if scenario.ModelFile != "" {
		data, err := os.ReadFile(scenario.ModelFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read model: %w", err)
		}
		text = string(data)
	}

	tg, err := convertScenario(scenario, text, result)
	if err != nil {
		result.Err = err
		if scenario.Error == "" {
			result.fail("pipeline rejected the model: %v", err)
		} else if !strings.Contains(err.Error(), scenario.Error) {
			result.fail("error %q does not contain %q", err.Error(), scenario.Error)
		}
		return result, nil
	}

	if scenario.Error != "" {
		result.fail("expected an error containing %q, conversion succeeded", scenario.Error)
		return result, nil
	}

	result.Dump = emit.Dump(tg)
	result.OpCounts = map[string]int{}
	for _, n := range tg.Nodes {
		result.OpCounts[n.Op]++
	}

	evaluate(scenario.Expect, result)
	return result, nil
}

// convertScenario runs the in-memory pipeline, leaving context and plan
// on the result as they become available.
func convertScenario(scenario *Scenario, text string, result *Result) (*emit.TargetGraph, error) {
	net, err := nnet3.Parse(text)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(net)
	if err != nil {
		return nil, err
	}

	if scenario.Context != nil {
		declared := ir.Context{Left: scenario.Context.Left, Right: scenario.Context.Right}
		if err := graph.Analyze(g, declared); err != nil {
			return nil, err
		}
	} else {
		graph.Infer(g)
	}
	result.Context = g.Context

	if scenario.Length > 0 {
		plan, err := chunk.Build(scenario.Length, scenario.ChunkSize, g.Context)
		if err != nil {
			return nil, err
		}
		result.Plan = plan
	}

	if _, err := optimize.Run(g); err != nil {
		return nil, err
	}

	return emit.Build(g, emit.Options{
		Target:      emit.Target(scenario.Target),
		Length:      scenario.Length,
		Opset:       int64(scenario.Opset),
		ChunkSize:   scenario.ChunkSize,
		ModelDigest: ir.ModelDigest([]byte(text)),
	})
}

// evaluate checks a successful run against the scenario's expectations.
func evaluate(expect *Expectation, result *Result) {
	if expect == nil {
		return
	}

	if expect.Context != nil {
		want := ir.Context{Left: expect.Context.Left, Right: expect.Context.Right}
		if result.Context != want {
			result.fail("context: want left=%d right=%d, got left=%d right=%d",
				want.Left, want.Right, result.Context.Left, result.Context.Right)
		}
	}

	if expect.Chunks > 0 {
		got := 0
		if result.Plan != nil {
			got = len(result.Plan.Chunks)
		}
		if got != expect.Chunks {
			result.fail("chunks: want %d, got %d", expect.Chunks, got)
		}
	}

	for op, want := range expect.Ops {
		if got := result.OpCounts[op]; got != want {
			result.fail("op %s: want %d, got %d", op, want, got)
		}
	}
}

// Package convert drives the whole pipeline: model text in, portable
// graph artifact out, with the conversion recorded in the ledger.
package convert

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/tz301/kaldi-onnx-tf/internal/cache"
	"github.com/tz301/kaldi-onnx-tf/internal/chunk"
	"github.com/tz301/kaldi-onnx-tf/internal/emit"
	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
	"github.com/tz301/kaldi-onnx-tf/internal/optimize"
)

// Tool identity, embedded in artifacts and ledger rows.
const (
	ToolName    = "kaldi-onnx-tf"
	ToolVersion = "0.1.0"
)

// Options configures one conversion run.
type Options struct {
	ModelPath  string
	OutputPath string
	Target     emit.Target

	// Context is the declared context pair, verified against the graph.
	Context ir.Context

	// ChunkSize is the output frames per chunk; Length is the utterance
	// length the chunk plan and static shapes are computed for. Length
	// zero emits dynamic time axes and skips the plan.
	ChunkSize int
	Length    int

	Opset int

	// CachePath enables the conversion ledger; empty disables it.
	CachePath string

	// Force reconverts even when the ledger proves the artifact exists.
	// The run is still recorded.
	Force bool

	// NoCache bypasses the ledger entirely for this run: no lookup, no
	// record, even when CachePath is set.
	NoCache bool

	// Clock overrides ledger timestamps; nil uses the system clock.
	Clock cache.Clock
}

// Artifact is the in-memory product of the pipeline, before anything is
// written.
type Artifact struct {
	Graph       *ir.Graph
	Target      *emit.TargetGraph
	Stats       optimize.Stats
	Digest      string
	Fingerprint string
	Plan        *chunk.Plan
}

// Result summarizes a completed Run.
type Result struct {
	RunID       string          `json:"run_id,omitempty"`
	ModelDigest string          `json:"model_digest"`
	Fingerprint string          `json:"fingerprint"`
	Target      emit.Target     `json:"target"`
	Context     ir.Context      `json:"context"`
	Nodes       int             `json:"nodes"`
	Stats       optimize.Stats  `json:"optimizer"`
	Plan        *chunk.Plan     `json:"plan,omitempty"`
	OutputPath  string          `json:"output_path"`

	// Cached is true when the ledger proved the artifact already exists
	// and the pipeline was skipped.
	Cached bool `json:"cached"`

	// CacheDegraded is true when the ledger was configured but failed;
	// the conversion itself still succeeded.
	CacheDegraded bool `json:"cache_degraded,omitempty"`
}

// Compile runs the in-memory pipeline over raw model text. It performs
// no I/O, which is what the inspect and plan commands want.
func Compile(data []byte, opts Options) (*Artifact, error) {
	digest := ir.ModelDigest(data)
	fingerprint, err := ir.ConversionFingerprint(
		digest, string(opts.Target), opts.Context.Left, opts.Context.Right,
		opts.ChunkSize, opts.Opset)
	if err != nil {
		return nil, err
	}

	net, err := nnet3.Parse(string(data))
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(net)
	if err != nil {
		return nil, err
	}
	if err := graph.Analyze(g, opts.Context); err != nil {
		return nil, err
	}

	var plan *chunk.Plan
	if opts.Length > 0 {
		plan, err = chunk.Build(opts.Length, opts.ChunkSize, g.Context)
		if err != nil {
			return nil, err
		}
	}

	stats, err := optimize.Run(g)
	if err != nil {
		return nil, err
	}

	tg, err := emit.Build(g, emit.Options{
		Target:      opts.Target,
		Length:      opts.Length,
		Opset:       int64(opts.Opset),
		ChunkSize:   opts.ChunkSize,
		Producer:    ToolName,
		Version:     ToolVersion,
		ModelDigest: digest,
	})
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Graph:       g,
		Target:      tg,
		Stats:       stats,
		Digest:      digest,
		Fingerprint: fingerprint,
		Plan:        plan,
	}, nil
}

// Run converts a model file to an artifact on disk. When the ledger
// already records this exact conversion at the requested output path,
// and the artifact still exists, the pipeline is skipped entirely.
//
// Ledger failures never fail the run; they degrade it to uncached.
func Run(ctx context.Context, opts Options) (*Result, error) {
	data, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	ledger, degraded := openLedger(opts)
	if ledger != nil {
		defer ledger.Close()
	}

	digest := ir.ModelDigest(data)
	fingerprint, err := ir.ConversionFingerprint(
		digest, string(opts.Target), opts.Context.Left, opts.Context.Right,
		opts.ChunkSize, opts.Opset)
	if err != nil {
		return nil, err
	}

	if ledger != nil && !opts.Force {
		if hit, ok := lookup(ctx, ledger, fingerprint, opts); ok {
			return &Result{
				RunID:       hit.ID,
				ModelDigest: digest,
				Fingerprint: fingerprint,
				Target:      opts.Target,
				Context:     hit.Context,
				Nodes:       hit.NodeCount,
				OutputPath:  hit.ArtifactPath,
				Cached:      true,
			}, nil
		}
	}

	art, err := Compile(data, opts)
	if err != nil {
		return nil, err
	}

	encoded, err := emit.Encode(art.Target)
	if err != nil {
		return nil, err
	}
	if err := emit.WriteFile(opts.OutputPath, encoded); err != nil {
		return nil, err
	}

	runID := newRunID()
	if ledger != nil {
		rec := cache.Conversion{
			ID:           runID,
			Fingerprint:  fingerprint,
			ModelDigest:  digest,
			ModelPath:    opts.ModelPath,
			Target:       string(opts.Target),
			ArtifactPath: opts.OutputPath,
			Context:      art.Graph.Context,
			ChunkSize:    opts.ChunkSize,
			Opset:        opts.Opset,
			NodeCount:    len(art.Target.Nodes),
			ToolVersion:  ToolVersion,
		}
		if err := ledger.Record(ctx, rec); err != nil {
			degraded = true
		}
	}

	return &Result{
		RunID:         runID,
		ModelDigest:   digest,
		Fingerprint:   fingerprint,
		Target:        opts.Target,
		Context:       art.Graph.Context,
		Nodes:         len(art.Target.Nodes),
		Stats:         art.Stats,
		Plan:          art.Plan,
		OutputPath:    opts.OutputPath,
		CacheDegraded: degraded,
	}, nil
}

// openLedger opens the configured ledger, degrading to nil on any
// failure.
func openLedger(opts Options) (*cache.Cache, bool) {
	if opts.CachePath == "" || opts.NoCache {
		return nil, false
	}
	var (
		ledger *cache.Cache
		err    error
	)
	if opts.Clock != nil {
		ledger, err = cache.OpenWithClock(opts.CachePath, opts.Clock)
	} else {
		ledger, err = cache.Open(opts.CachePath)
	}
	if err != nil {
		return nil, true
	}
	return ledger, false
}

// lookup reports whether the ledger proves the requested artifact
// already exists on disk at the requested path.
func lookup(ctx context.Context, ledger *cache.Cache, fingerprint string, opts Options) (cache.Conversion, bool) {
	hit, found, err := ledger.Lookup(ctx, fingerprint, string(opts.Target))
	if err != nil || !found {
		return cache.Conversion{}, false
	}
	if hit.ArtifactPath != opts.OutputPath {
		return cache.Conversion{}, false
	}
	if _, err := os.Stat(hit.ArtifactPath); err != nil {
		return cache.Conversion{}, false
	}
	return hit, true
}

// newRunID returns a time-ordered unique run identifier. UUIDv7 sorts
// by creation time, which keeps ledger ids aligned with history order.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only possible if the entropy source fails; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}

package cache

import (
	"context"
	"time"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// Conversion is one ledger row.
type Conversion struct {
	ID           string     `json:"id"`
	Fingerprint  string     `json:"fingerprint"`
	ModelDigest  string     `json:"model_digest"`
	ModelPath    string     `json:"model_path"`
	Target       string     `json:"target"`
	ArtifactPath string     `json:"artifact_path"`
	Context      ir.Context `json:"context"`
	ChunkSize    int        `json:"chunk_size"`
	Opset        int        `json:"opset"`
	NodeCount    int        `json:"node_count"`
	ToolVersion  string     `json:"tool_version"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Record inserts a conversion row. Re-recording the same fingerprint,
// target, and artifact path is silently ignored, so repeated identical
// runs stay idempotent.
func (c *Cache) Record(ctx context.Context, conv Conversion) error {
	created := conv.CreatedAt
	if created.IsZero() {
		created = c.clock.Now()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversions
		(id, fingerprint, model_digest, model_path, target, artifact_path,
		 left_context, right_context, chunk_size, opset, node_count,
		 tool_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, target, artifact_path) DO NOTHING
	`,
		conv.ID,
		conv.Fingerprint,
		conv.ModelDigest,
		conv.ModelPath,
		conv.Target,
		conv.ArtifactPath,
		conv.Context.Left,
		conv.Context.Right,
		conv.ChunkSize,
		conv.Opset,
		conv.NodeCount,
		conv.ToolVersion,
		created.Unix(),
	)
	if err != nil {
		return &StoreError{Op: "record", Err: err}
	}
	return nil
}

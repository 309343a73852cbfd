package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const conversionColumns = `id, fingerprint, model_digest, model_path, target,
	artifact_path, left_context, right_context, chunk_size, opset,
	node_count, tool_version, created_at`

// Lookup returns the newest ledger row matching a fingerprint and
// target, or found=false when no conversion with that identity has been
// recorded.
func (c *Cache) Lookup(ctx context.Context, fingerprint, target string) (Conversion, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+conversionColumns+`
		FROM conversions
		WHERE fingerprint = ? AND target = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, fingerprint, target)

	conv, err := scanConversion(row)
	if err == sql.ErrNoRows {
		return Conversion{}, false, nil
	}
	if err != nil {
		return Conversion{}, false, &StoreError{Op: "lookup", Err: err}
	}
	return conv, true, nil
}

// History returns the most recent ledger rows, newest first. A limit of
// zero or less returns everything.
func (c *Cache) History(ctx context.Context, limit int) ([]Conversion, error) {
	query := `
		SELECT ` + conversionColumns + `
		FROM conversions
		ORDER BY created_at DESC, id DESC`
	args := []any(nil)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "history", Err: err}
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		conv, err := scanConversion(rows)
		if err != nil {
			return nil, &StoreError{Op: "history", Err: fmt.Errorf("scan row: %w", err)}
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "history", Err: err}
	}
	return out, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(s scanner) (Conversion, error) {
	var conv Conversion
	var created int64
	err := s.Scan(
		&conv.ID,
		&conv.Fingerprint,
		&conv.ModelDigest,
		&conv.ModelPath,
		&conv.Target,
		&conv.ArtifactPath,
		&conv.Context.Left,
		&conv.Context.Right,
		&conv.ChunkSize,
		&conv.Opset,
		&conv.NodeCount,
		&conv.ToolVersion,
		&created,
	)
	if err != nil {
		return Conversion{}, err
	}
	conv.CreatedAt = time.Unix(created, 0).UTC()
	return conv, nil
}

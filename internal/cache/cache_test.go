package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestCache(t *testing.T) (*Cache, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.NewFixedClock(testEpoch)
	c, err := OpenWithClock(filepath.Join(t.TempDir(), "ledger.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, clock
}

func sampleConversion(id, fingerprint string) Conversion {
	return Conversion{
		ID:           id,
		Fingerprint:  fingerprint,
		ModelDigest:  "digest-" + fingerprint,
		ModelPath:    "final.txt",
		Target:       "onnx",
		ArtifactPath: "final.onnx",
		Context:      ir.Context{Left: 10, Right: 5},
		ChunkSize:    21,
		Opset:        13,
		NodeCount:    12,
		ToolVersion:  "0.1.0",
	}
}

func TestOpenMissingDirectoryIsStoreError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "ledger.db"))
	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "open", storeErr.Op)
	assert.Error(t, storeErr.Unwrap())
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestRecordAndLookup(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	conv := sampleConversion("run-1", "fp-1")
	require.NoError(t, c.Record(ctx, conv))

	got, found, err := c.Lookup(ctx, "fp-1", "onnx")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, ir.Context{Left: 10, Right: 5}, got.Context)
	assert.Equal(t, 12, got.NodeCount)
	assert.Equal(t, testEpoch, got.CreatedAt)

	_, found, err = c.Lookup(ctx, "fp-1", "tf")
	require.NoError(t, err)
	assert.False(t, found, "target is part of the lookup identity")

	_, found, err = c.Lookup(ctx, "fp-other", "onnx")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordIdempotent(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	conv := sampleConversion("run-1", "fp-1")
	require.NoError(t, c.Record(ctx, conv))

	// Same identity, new id: silently ignored.
	dup := sampleConversion("run-2", "fp-1")
	require.NoError(t, c.Record(ctx, dup))

	got, found, err := c.Lookup(ctx, "fp-1", "onnx")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-1", got.ID)

	history, err := c.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLookupReturnsNewest(t *testing.T) {
	c, clock := openTestCache(t)
	ctx := context.Background()

	first := sampleConversion("run-1", "fp-1")
	require.NoError(t, c.Record(ctx, first))

	clock.Advance(time.Minute)
	second := sampleConversion("run-2", "fp-1")
	second.ArtifactPath = "final-v2.onnx"
	require.NoError(t, c.Record(ctx, second))

	got, found, err := c.Lookup(ctx, "fp-1", "onnx")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-2", got.ID)
	assert.Equal(t, "final-v2.onnx", got.ArtifactPath)
}

func TestHistoryOrderAndLimit(t *testing.T) {
	c, clock := openTestCache(t)
	ctx := context.Background()

	for i, fp := range []string{"fp-a", "fp-b", "fp-c"} {
		conv := sampleConversion("run-"+fp, fp)
		require.NoError(t, c.Record(ctx, conv))
		if i < 2 {
			clock.Advance(time.Hour)
		}
	}

	history, err := c.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "run-fp-c", history[0].ID)
	assert.Equal(t, "run-fp-a", history[2].ID)

	limited, err := c.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-fp-c", limited[0].ID)
}

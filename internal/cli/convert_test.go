package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tz301/kaldi-onnx-tf/internal/testutil"
)

func writeTestModel(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "final.txt")
	require.NoError(t, os.WriteFile(path, []byte(testutil.TwoLayerNetwork()), 0o644))
	return path
}

func convertArgs(modelPath string, extra ...string) []string {
	args := []string{modelPath, "--left-context", "10", "--right-context", "5"}
	return append(args, extra...)
}

func TestConvertText(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath))

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ Converted")
	assert.Contains(t, output, "context: left=10 right=5")

	_, err := os.Stat(filepath.Join(dir, "final.onnx"))
	require.NoError(t, err, "default output path derives from the model path")
}

func TestConvertJSON(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath, "--length", "50"))

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "onnx", data["target"])
	assert.NotEmpty(t, data["model_digest"])
	assert.NotNil(t, data["plan"])
}

func TestConvertTFTarget(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath, "--target", "tf"))

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(dir, "final.pb"))
	require.NoError(t, err)
}

func TestConvertContextMismatch(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{modelPath, "--left-context", "3", "--right-context", "5"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [CONTEXT_MISMATCH]")
	assert.Contains(t, buf.String(), "context mismatch")
}

func TestConvertMissingModel(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(filepath.Join(t.TempDir(), "missing.txt")))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [IO]")
}

func TestConvertParseError(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(modelPath, []byte("component-node name=x\n"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestConvertConfigFileDefaults(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	configPath := filepath.Join(dir, "convert.cue")
	require.NoError(t, os.WriteFile(configPath,
		[]byte("target: \"tf\"\nchunk_size: 30\n"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", ConfigPath: configPath}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath))

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "tf", data["target"], "config file sets the target when no flag overrides it")

	_, err := os.Stat(filepath.Join(dir, "final.pb"))
	require.NoError(t, err)
}

func TestConvertBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	configPath := filepath.Join(dir, "convert.cue")
	require.NoError(t, os.WriteFile(configPath, []byte("chunk_size: -3\n"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", ConfigPath: configPath}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [CONFIG]")
}

func TestConvertCachedRerun(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)
	cachePath := filepath.Join(dir, "ledger.db")

	run := func() string {
		buf := &bytes.Buffer{}
		rootOpts := &RootOptions{Format: "text"}
		cmd := NewConvertCommand(rootOpts)
		cmd.SetOut(buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(convertArgs(modelPath, "--cache", cachePath))
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	assert.Contains(t, run(), "✓ Converted")
	assert.Contains(t, run(), "✓ Cached")
}

func TestConvertForceBypassesCacheHit(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)
	cachePath := filepath.Join(dir, "ledger.db")

	run := func(extra ...string) string {
		buf := &bytes.Buffer{}
		rootOpts := &RootOptions{Format: "text"}
		cmd := NewConvertCommand(rootOpts)
		cmd.SetOut(buf)
		cmd.SetErr(&bytes.Buffer{})
		args := convertArgs(modelPath, "--cache", cachePath)
		cmd.SetArgs(append(args, extra...))
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	assert.Contains(t, run(), "✓ Converted")
	assert.Contains(t, run("--force"), "✓ Converted", "force reconverts instead of reporting a hit")
}

func TestConvertNoCacheNeverRecords(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)
	cachePath := filepath.Join(dir, "ledger.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(convertArgs(modelPath, "--cache", cachePath, "--no-cache"))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Converted")

	_, err := os.Stat(cachePath)
	assert.True(t, os.IsNotExist(err), "no ledger database is created")
}

func TestConvertVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeTestModel(t, dir)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Verbose: true}
	cmd := NewConvertCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(convertArgs(modelPath))

	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "Converting")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "stdout stays pure JSON")
}

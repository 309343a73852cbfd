package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convert.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target:     "tf"
chunk_size: 42
cache_path: "/tmp/ledger.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tf", cfg.Target)
	assert.Equal(t, 42, cfg.ChunkSize)
	assert.Equal(t, "/tmp/ledger.db", cfg.CachePath)
	// Untouched fields keep their defaults.
	assert.Equal(t, 13, cfg.Opset)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"wrong type", `chunk_size: "twenty"`, "chunk_size"},
		{"bad target", `target: "coreml"`, "target"},
		{"chunk size zero", `chunk_size: 0`, "chunk_size"},
		{"opset out of range", `opset: 7`, "opset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			var e *ConfigError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	var e *ConfigError
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Error(), "reading")
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

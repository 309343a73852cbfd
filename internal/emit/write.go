package emit

import (
	"fmt"
	"os"
	"path/filepath"
)

// Encode serializes a TargetGraph to its container bytes.
func Encode(tg *TargetGraph) ([]byte, error) {
	switch tg.Target {
	case TargetONNX:
		return encodeONNX(tg), nil
	case TargetTF:
		return encodeTF(tg), nil
	}
	return nil, fmt.Errorf("unknown target %q", tg.Target)
}

// WriteFile writes data to path atomically: a temp file in the same
// directory, synced, then renamed over the destination. A crashed run
// never leaves a torn artifact behind at path.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Runtime option changes survive restarts through an override file next to
// the main config. The override holds a full settings snapshot, not a diff;
// merging diffs across versions proved fragile.

// OverridePath returns the override file path for a given config path.
func OverridePath(configPath string) string {
	dir := filepath.Dir(configPath)
	return filepath.Join(dir, "settings.override.yaml")
}

// ApplyOverride merges the override file, when present, over the given
// settings. A missing file is not an error; a malformed one is, and the
// input settings are returned unchanged.
func ApplyOverride(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("failed to read settings override: %w", err)
	}

	merged := base
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return base, fmt.Errorf("failed to parse settings override: %w", err)
	}
	if err := ValidateSettings(&merged); err != nil {
		return base, fmt.Errorf("invalid settings override: %w", err)
	}
	return merged, nil
}

// SaveOverride persists a settings snapshot to the override file. The write
// goes through a temp file and rename so a power cut never leaves a
// truncated override.
func SaveOverride(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings override: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace settings override: %w", err)
	}
	return nil
}

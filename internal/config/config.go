package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete memocadre configuration. It is loaded once
// at startup; only the Slideshow section can change at runtime, via the
// settings store.
type Config struct {
	InstanceID       string        `yaml:"instance_id"`
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Gallery          GalleryConfig `yaml:"gallery"`
	Display          DisplayConfig `yaml:"display"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
	HTTP             HTTPConfig    `yaml:"http"`
	Health           HealthConfig  `yaml:"health"`
	Slideshow        Settings      `yaml:"slideshow"`
}

// GalleryConfig describes the remote photo catalog and the local cache.
type GalleryConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Mode     string `yaml:"mode"`      // random, album, search
	AlbumID  string `yaml:"album_id"`  // for mode: album
	Query    string `yaml:"query"`     // for mode: search
	PageSize int    `yaml:"page_size"` // assets fetched per listing call
	CacheDir string `yaml:"cache_dir"` // empty disables the disk cache
}

// DisplayConfig selects and parameterizes the render backend.
type DisplayConfig struct {
	// Backend forces a backend: "auto", "window", "drm", "offscreen".
	// "auto" picks drm when no display server environment is detected.
	Backend string `yaml:"backend"`
	// Width/Height apply to the windowed backend only; the drm backend
	// always uses the connector's preferred mode.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Card is the DRM device node, default /dev/dri/card0.
	Card string `yaml:"card"`
	// FontPath points at a TTF used for captions. Empty falls back to a
	// builtin bitmap face.
	FontPath string `yaml:"font_path"`
	// QueueDepth is the prefetch queue depth (minimum and default 2).
	QueueDepth int `yaml:"queue_depth"`
	// HistoryDepth is how many already-shown photos are retained for the
	// previous command.
	HistoryDepth int `yaml:"history_depth"`
}

// MQTTConfig contains MQTT broker settings for the control plane.
// An empty broker disables MQTT entirely.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Control string `yaml:"control"`
	Status  string `yaml:"status"`
}

// HTTPConfig contains the status server settings. An empty addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// HealthConfig bounds the process against the target hardware.
type HealthConfig struct {
	// MemoryBudgetMB triggers a warning when resident memory exceeds it.
	// Defaults to 70, the budget for the smallest supported boards.
	MemoryBudgetMB uint64 `yaml:"memory_budget_mb"`
	// ReportIntervalS is the health log interval in seconds (default: 60).
	ReportIntervalS int `yaml:"report_interval_s"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{Slideshow: DefaultSettings()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "memocadre"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Gallery.URL == "" {
		return fmt.Errorf("gallery.url is required")
	}
	switch cfg.Gallery.Mode {
	case "":
		cfg.Gallery.Mode = "random"
	case "random", "album", "search":
	default:
		return fmt.Errorf("gallery.mode must be random, album or search, got %q", cfg.Gallery.Mode)
	}
	if cfg.Gallery.Mode == "album" && cfg.Gallery.AlbumID == "" {
		return fmt.Errorf("gallery.album_id is required for mode album")
	}
	if cfg.Gallery.Mode == "search" && cfg.Gallery.Query == "" {
		return fmt.Errorf("gallery.query is required for mode search")
	}
	if cfg.Gallery.PageSize <= 0 {
		cfg.Gallery.PageSize = 50
	}

	switch cfg.Display.Backend {
	case "":
		cfg.Display.Backend = "auto"
	case "auto", "window", "drm", "offscreen":
	default:
		return fmt.Errorf("display.backend must be auto, window, drm or offscreen, got %q", cfg.Display.Backend)
	}
	if cfg.Display.Width <= 0 {
		cfg.Display.Width = 1280
	}
	if cfg.Display.Height <= 0 {
		cfg.Display.Height = 800
	}
	if cfg.Display.Card == "" {
		cfg.Display.Card = "/dev/dri/card0"
	}
	if cfg.Display.QueueDepth < 2 {
		cfg.Display.QueueDepth = 2
	}
	if cfg.Display.HistoryDepth <= 0 {
		cfg.Display.HistoryDepth = 3
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("memocadre/control/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Status == "" {
			cfg.MQTT.Topics.Status = fmt.Sprintf("memocadre/status/%s", cfg.InstanceID)
		}
		if cfg.MQTT.QoS == nil {
			cfg.MQTT.QoS = map[string]byte{
				"control": 1,
				"status":  0,
			}
		}
	}

	if cfg.Health.MemoryBudgetMB == 0 {
		cfg.Health.MemoryBudgetMB = 70
	}
	if cfg.Health.ReportIntervalS <= 0 {
		cfg.Health.ReportIntervalS = 60
	}

	if err := ValidateSettings(&cfg.Slideshow); err != nil {
		return fmt.Errorf("slideshow settings invalid: %w", err)
	}

	return nil
}

package render

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/xabufr/memocadre/internal/config"
)

// Detect resolves the "auto" backend choice: windowed when a display
// server session is visible in the environment, direct DRM otherwise.
func Detect(cfg config.DisplayConfig) string {
	if cfg.Backend != "" && cfg.Backend != "auto" {
		return cfg.Backend
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("DISPLAY") != "" {
		return "window"
	}
	return "drm"
}

// Open creates the selected backend and hands it to run, tearing the
// surface down when run returns. The indirection exists because the
// windowed driver insists on owning the calling goroutine; callers
// therefore invoke Open from main and treat run as their main loop.
func Open(cfg config.DisplayConfig, run func(Backend) error) error {
	backend := Detect(cfg)
	slog.Info("opening display", "backend", backend, "width", cfg.Width, "height", cfg.Height)

	switch backend {
	case "window":
		return runWindowed(cfg, run)
	case "offscreen":
		b := NewOffscreen(image.Point{X: cfg.Width, Y: cfg.Height})
		runErr := run(b)
		if closeErr := b.Close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
		return runErr
	case "drm":
		b, err := openDRM(cfg)
		if err != nil {
			return fmt.Errorf("failed to open drm device: %w", err)
		}
		runErr := run(b)
		if closeErr := b.Close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
		return runErr
	default:
		return fmt.Errorf("unknown display backend %q", backend)
	}
}

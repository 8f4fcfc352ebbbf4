//go:build !linux

package render

import (
	"errors"

	"github.com/xabufr/memocadre/internal/config"
)

// Direct rendering requires the Linux DRM/KMS interface; other platforms
// get the windowed backend only.
func openDRM(cfg config.DisplayConfig) (Backend, error) {
	return nil, errors.New("drm backend is only available on linux")
}

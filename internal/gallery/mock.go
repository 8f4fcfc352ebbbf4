package gallery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"
)

// MockSource generates synthetic gradient photos. It exists for development
// on machines without a reachable catalog (gallery.url: mock) and for
// tests; it never fails and never paginates.
type MockSource struct {
	width  int
	height int
	seq    int
}

// NewMockSource creates a generator producing width x height photos.
func NewMockSource(width, height int) *MockSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &MockSource{width: width, height: height}
}

func (m *MockSource) Next(ctx context.Context) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.seq++
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x*255/m.width + m.seq*37) % 256),
				G: uint8((y * 255) / m.height),
				B: uint8((m.seq * 53) % 256),
				A: 0xff,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode mock photo: %w", err)
	}

	return &Asset{
		ID:       fmt.Sprintf("mock-%04d", m.seq),
		Bytes:    buf.Bytes(),
		Location: "Testville",
		TakenAt:  time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, m.seq),
	}, nil
}

// Package caption renders the photo information overlay (location and
// capture date) shown at the bottom of the screen.
package caption

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/xabufr/memocadre/internal/types"
)

const (
	padding   = 10
	bgOpacity = 0x99
)

// Renderer turns photo metadata into a ready-to-blend caption strip.
// Faces are not safe for concurrent use; the controller owns one renderer
// and calls it from the render goroutine only.
type Renderer struct {
	face font.Face
}

// NewRenderer loads the caption face from a TTF file. An empty path or an
// unreadable font falls back to the builtin bitmap face rather than
// failing; a frame without captions is better than no frame.
func NewRenderer(fontPath string, size float64) *Renderer {
	if fontPath == "" {
		return &Renderer{face: basicfont.Face7x13}
	}
	face, err := loadFace(fontPath, size)
	if err != nil {
		slog.Warn("caption font unavailable, using builtin face",
			"path", fontPath,
			"error", err,
		)
		return &Renderer{face: basicfont.Face7x13}
	}
	return &Renderer{face: face}
}

func loadFace(fontPath string, size float64) (font.Face, error) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read caption font: %w", err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse caption font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create caption face: %w", err)
	}
	return face, nil
}

// Text builds the caption line for a photo: "Location · date", either part
// omitted when unknown. Empty when the photo has no metadata at all.
func Text(p *types.Photo, dateFormat string) string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	if !p.TakenAt.IsZero() {
		parts = append(parts, p.TakenAt.Format(dateFormat))
	}
	return strings.Join(parts, " · ")
}

// Render draws the caption strip for a photo onto a fresh RGBA image with a
// translucent background, or returns nil when there is nothing to show.
// The strip is clipped to maxWidth.
func (r *Renderer) Render(p *types.Photo, dateFormat string, maxWidth int) *image.RGBA {
	text := Text(p, dateFormat)
	if text == "" || maxWidth <= 2*padding {
		return nil
	}

	metrics := r.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()

	width := font.MeasureString(r.face, text).Ceil()
	if width > maxWidth-2*padding {
		width = maxWidth - 2*padding
	}

	strip := image.NewRGBA(image.Rect(0, 0, width+2*padding, height+2*padding))
	draw.Draw(strip, strip.Bounds(), image.NewUniform(color.NRGBA{A: bgOpacity}), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  strip,
		Src:  image.White,
		Face: r.face,
		Dot:  fixed.P(padding, padding+ascent),
	}
	d.DrawString(text)

	return strip
}

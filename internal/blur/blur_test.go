package blur

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestBackgroundMatchesRequestedSize(t *testing.T) {
	c := New()
	src := uniform(320, 240, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff})

	out := c.Background(src, image.Point{X: 1280, Y: 800}, 6, 3)
	if got := out.Bounds().Size(); got != (image.Point{X: 1280, Y: 800}) {
		t.Fatalf("backdrop size %v, want 1280x800", got)
	}

	// Portrait output from a landscape source still covers fully.
	out = c.Background(src, image.Point{X: 800, Y: 1280}, 6, 3)
	if got := out.Bounds().Size(); got != (image.Point{X: 800, Y: 1280}) {
		t.Fatalf("portrait backdrop size %v", got)
	}
}

func TestBackgroundUniformInputStaysUniformAndDimmed(t *testing.T) {
	c := New()
	src := uniform(100, 100, color.RGBA{R: 0xc8, G: 0xc8, B: 0xc8, A: 0xff})

	out := c.Background(src, image.Point{X: 64, Y: 64}, 6, 3)

	// Blurring a flat image changes nothing; dimming halves it.
	want := uint8(0xc8 >> 1)
	center := out.RGBAAt(32, 32)
	if diff(center.R, want) > 2 || diff(center.G, want) > 2 || diff(center.B, want) > 2 {
		t.Errorf("expected ~%d everywhere, center is %v", want, center)
	}
	if center.A != 0xff {
		t.Errorf("backdrop must be opaque, alpha %d", center.A)
	}
}

func TestBackgroundSmoothsEdges(t *testing.T) {
	c := New()

	// Hard vertical edge: left black, right white.
	src := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 64; x < 128; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}

	out := c.Background(src, image.Point{X: 128, Y: 128}, 6, 3)

	// At the former edge the value must be strictly between the dimmed
	// extremes; a sharp step would keep one side at 0 or 127.
	mid := out.RGBAAt(64, 64)
	if mid.R < 8 || mid.R > 120 {
		t.Errorf("edge not blurred, value %d", mid.R)
	}
}

func TestBackgroundZeroOutput(t *testing.T) {
	c := New()
	src := uniform(10, 10, color.RGBA{A: 0xff})
	out := c.Background(src, image.Point{}, 6, 3)
	if !out.Bounds().Empty() {
		t.Errorf("expected empty image for zero output size")
	}
}

func TestBackgroundSmallerThanWorkingResolution(t *testing.T) {
	c := New()
	src := uniform(16, 12, color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff})

	out := c.Background(src, image.Point{X: 64, Y: 48}, 6, 3)
	if got := out.Bounds().Size(); got != (image.Point{X: 64, Y: 48}) {
		t.Fatalf("size %v, want 64x48", got)
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// compositor holds the CPU canvases shared by both backends. Frames are
// composed in logical orientation, then rotated into the physical surface
// when the two differ. The scratch canvas exists only while transitions
// need a second fully composed layer.
type compositor struct {
	surface image.Point
	canvas  *image.RGBA
	scratch *image.RGBA
}

func newCompositor(surface image.Point) *compositor {
	return &compositor{surface: surface}
}

// compose renders a frame into dst, which must be surface-sized. For
// rotation 0 layers are drawn straight into dst; otherwise they are drawn
// into a logical canvas first and rotated in.
func (c *compositor) compose(dst *image.RGBA, f Frame) {
	if f.Rotation == 0 {
		c.composeLayers(dst, f)
		return
	}

	logical := LogicalSize(c.surface, f.Rotation)
	if c.canvas == nil || c.canvas.Bounds().Size() != logical {
		c.canvas = image.NewRGBA(image.Rectangle{Max: logical})
	}
	c.composeLayers(c.canvas, f)
	rotateInto(dst, c.canvas, f.Rotation)
}

// composeLayers draws the base layer and, during a transition, blends the
// fully composed over layer on top with uniform opacity. The over layer is
// composed into a scratch canvas first so the crossfade is a true
// out = base*(1-a) + over*a, not a stack of per-element blends.
func (c *compositor) composeLayers(dst *image.RGBA, f Frame) {
	drawLayer(dst, f.Base)

	if f.Over == nil || f.Alpha <= 0 {
		return
	}
	if f.Alpha >= 1 {
		drawLayer(dst, f.Over)
		return
	}

	if c.scratch == nil || c.scratch.Bounds().Size() != dst.Bounds().Size() {
		c.scratch = image.NewRGBA(image.Rectangle{Max: dst.Bounds().Size()})
	}
	drawLayer(c.scratch, f.Over)
	blendUniform(dst, c.scratch, f.Alpha)
}

// drawLayer paints one layer opaquely: backdrop (or black), the photo
// fit-centered, and the caption strip anchored to the bottom.
func drawLayer(dst *image.RGBA, l *Layer) {
	bounds := dst.Bounds()

	if l == nil {
		draw.Draw(dst, bounds, image.Black, image.Point{}, draw.Src)
		return
	}

	if l.Background != nil {
		bg := l.Background.rgba()
		if bg.Bounds().Size() == bounds.Size() {
			draw.Draw(dst, bounds, bg, bg.Bounds().Min, draw.Src)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, bounds, bg, bg.Bounds(), xdraw.Src, nil)
		}
	} else {
		draw.Draw(dst, bounds, image.Black, image.Point{}, draw.Src)
	}

	if l.Photo != nil {
		photo := l.Photo.rgba()
		place := fitRect(photo.Bounds().Size(), bounds.Size()).Add(bounds.Min)
		if place.Size() == photo.Bounds().Size() {
			draw.Draw(dst, place, photo, photo.Bounds().Min, draw.Over)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, place, photo, photo.Bounds(), xdraw.Over, nil)
		}
	}

	if l.Caption != nil {
		cap := l.Caption.Bounds().Size()
		at := image.Rect(
			bounds.Min.X+(bounds.Dx()-cap.X)/2,
			bounds.Max.Y-cap.Y-captionMargin,
			bounds.Min.X+(bounds.Dx()+cap.X)/2,
			bounds.Max.Y-captionMargin,
		)
		draw.Draw(dst, at, l.Caption, l.Caption.Bounds().Min, draw.Over)
	}
}

const captionMargin = 16

// fitRect places src inside bounds preserving aspect ratio, centered.
// Smaller photos are scaled up to fill one axis; the worker never upscales
// so this is where small originals reach display size.
func fitRect(src, bounds image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || bounds.X <= 0 || bounds.Y <= 0 {
		return image.Rectangle{}
	}

	var w, h int
	if src.X*bounds.Y > src.Y*bounds.X {
		w = bounds.X
		h = src.Y * bounds.X / src.X
	} else {
		w = src.X * bounds.Y / src.Y
		h = bounds.Y
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	x := (bounds.X - w) / 2
	y := (bounds.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// blendUniform blends src over dst with a single opacity for every pixel.
func blendUniform(dst, src *image.RGBA, alpha float64) {
	a := uint8(alpha*255 + 0.5)
	mask := image.NewUniform(color.Alpha{A: a})
	draw.DrawMask(dst, dst.Bounds(), src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// rotateInto writes src rotated clockwise by the given degrees into dst.
// dst and src sizes must correspond (axes swapped for 90/270).
func rotateInto(dst, src *image.RGBA, rotation int) {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()

	switch rotation {
	case 90:
		// (x, y) -> (h-1-y, x)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetRGBA(h-1-y, x, src.RGBAAt(sb.Min.X+x, sb.Min.Y+y))
			}
		}
	case 180:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetRGBA(w-1-x, h-1-y, src.RGBAAt(sb.Min.X+x, sb.Min.Y+y))
			}
		}
	case 270:
		// (x, y) -> (y, w-1-x)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetRGBA(y, w-1-x, src.RGBAAt(sb.Min.X+x, sb.Min.Y+y))
			}
		}
	default:
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
	}
}

// Package blur renders the blurred full-frame backdrop shown behind photos
// that do not fill the screen.
//
// The blur runs on the CPU: the target boards have no usable GPU blur path
// and an ARMv6 CPU without floating-point acceleration, so the work happens
// at a small working resolution with integer arithmetic in the inner loops.
// The result is recomputed only when the displayed photo or the blur
// settings change, never per frame.
package blur

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// workingWidth caps the resolution the blur passes run at. 256px wide is
// indistinguishable from full resolution once blurred and upscaled.
const workingWidth = 256

// Separable 5-tap Gaussian, weights summing to 10000. The two outer taps
// sample at 1.38 and 3.23 texel offsets scaled by the pass radius.
const (
	weightCenter = 2270
	weightNear   = 3162
	weightFar    = 703
	weightScale  = 10000
)

// Compositor produces blurred backgrounds. It is not safe for concurrent
// use; the controller owns one and calls it from the render goroutine only.
type Compositor struct {
	work [2]*image.RGBA
}

func New() *Compositor {
	return &Compositor{}
}

// Background returns the blurred backdrop for src, sized and cropped to
// cover out entirely. radius is the base blur radius in working-resolution
// pixels; passes is the number of horizontal+vertical pass pairs. The
// backdrop is dimmed to half brightness so the foreground photo stays
// dominant.
func (c *Compositor) Background(src *image.RGBA, out image.Point, radius float64, passes int) *image.RGBA {
	if out.X <= 0 || out.Y <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}

	workW := workingWidth
	if out.X < workW {
		workW = out.X
	}
	workH := workW * out.Y / out.X
	if workH < 1 {
		workH = 1
	}

	c.ensureWork(workW, workH)
	coverScale(c.work[0], src)

	// Decreasing radius per pass, like a pyramid: wide taps first to
	// spread energy, narrow taps last to erase ringing.
	for i := 0; i < passes; i++ {
		step := radius * float64(passes-i) / float64(passes)
		if step < 1 {
			step = 1
		}
		blurPass(c.work[1], c.work[0], int(step*1.3846+0.5), int(step*3.2308+0.5), true)
		blurPass(c.work[0], c.work[1], int(step*1.3846+0.5), int(step*3.2308+0.5), false)
	}

	dim(c.work[0])

	dst := image.NewRGBA(image.Rectangle{Max: out})
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), c.work[0], c.work[0].Bounds(), xdraw.Src, nil)
	return dst
}

func (c *Compositor) ensureWork(w, h int) {
	r := image.Rect(0, 0, w, h)
	for i := range c.work {
		if c.work[i] == nil || c.work[i].Bounds() != r {
			c.work[i] = image.NewRGBA(r)
		}
	}
}

// coverScale fills dst with src scaled to cover dst's aspect ratio,
// cropping the overflowing dimension symmetrically.
func coverScale(dst *image.RGBA, src *image.RGBA) {
	db := dst.Bounds().Size()
	sb := src.Bounds().Size()
	if sb.X == 0 || sb.Y == 0 {
		return
	}

	// Pick the source crop with dst's aspect ratio.
	cropW, cropH := sb.X, sb.Y
	if sb.X*db.Y > sb.Y*db.X {
		cropW = sb.Y * db.X / db.Y
	} else {
		cropH = sb.X * db.Y / db.X
	}
	x0 := src.Bounds().Min.X + (sb.X-cropW)/2
	y0 := src.Bounds().Min.Y + (sb.Y-cropH)/2
	crop := image.Rect(x0, y0, x0+cropW, y0+cropH)

	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
}

// blurPass applies one 5-tap pass along an axis. Offsets are clamped at the
// image border, which slightly over-weights edge pixels; invisible after
// dimming and upscale.
func blurPass(dst, src *image.RGBA, offNear, offFar int, horizontal bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if offNear < 1 {
		offNear = 1
	}
	if offFar < offNear {
		offFar = offNear + 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var xs, ys [5]int
			if horizontal {
				xs = [5]int{x, clamp(x-offNear, w), clamp(x+offNear, w), clamp(x-offFar, w), clamp(x+offFar, w)}
				ys = [5]int{y, y, y, y, y}
			} else {
				xs = [5]int{x, x, x, x, x}
				ys = [5]int{y, clamp(y-offNear, h), clamp(y+offNear, h), clamp(y-offFar, h), clamp(y+offFar, h)}
			}

			var r, g, bl int
			weights := [5]int{weightCenter, weightNear, weightNear, weightFar, weightFar}
			for i := 0; i < 5; i++ {
				o := src.PixOffset(b.Min.X+xs[i], b.Min.Y+ys[i])
				wgt := weights[i]
				r += int(src.Pix[o]) * wgt
				g += int(src.Pix[o+1]) * wgt
				bl += int(src.Pix[o+2]) * wgt
			}

			o := dst.PixOffset(dst.Bounds().Min.X+x, dst.Bounds().Min.Y+y)
			dst.Pix[o] = uint8(r / weightScale)
			dst.Pix[o+1] = uint8(g / weightScale)
			dst.Pix[o+2] = uint8(bl / weightScale)
			dst.Pix[o+3] = 0xff
		}
	}
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

// dim halves the brightness in place.
func dim(img *image.RGBA) {
	p := img.Pix
	for i := 0; i < len(p); i += 4 {
		p[i] >>= 1
		p[i+1] >>= 1
		p[i+2] >>= 1
	}
}

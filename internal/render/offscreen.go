package render

import (
	"image"
	"sync"
)

// Offscreen is a backend composing into process memory, with no display
// attached. It exists for development without a panel and for tests; it
// runs the exact compose path the real backends run.
type Offscreen struct {
	comp      *compositor
	size      image.Point
	canvas    *image.RGBA
	presented int
	closed    bool
}

// NewOffscreen creates an offscreen backend with the given surface size.
func NewOffscreen(size image.Point) *Offscreen {
	return &Offscreen{
		comp:   newCompositor(size),
		size:   size,
		canvas: image.NewRGBA(image.Rectangle{Max: size}),
	}
}

func (o *Offscreen) Size() image.Point { return o.size }

func (o *Offscreen) Upload(img *image.RGBA) (Texture, error) {
	copied := image.NewRGBA(img.Bounds())
	copy(copied.Pix, img.Pix)
	return &memTexture{img: copied, backend: o}, nil
}

func (o *Offscreen) Draw(f Frame) error {
	if err := checkFrameOwnership(o, f); err != nil {
		return err
	}
	o.comp.compose(o.canvas, f)
	return nil
}

func (o *Offscreen) Present() error {
	o.presented++
	return nil
}

func (o *Offscreen) Close() error {
	o.closed = true
	return nil
}

// Canvas returns the last composed surface.
func (o *Offscreen) Canvas() *image.RGBA { return o.canvas }

// Presented returns how many frames were presented.
func (o *Offscreen) Presented() int { return o.presented }

// memTexture is a plain heap texture, used by backends whose device
// buffers cannot hold sampled images (dumb scanout buffers) and by the
// offscreen backend.
type memTexture struct {
	img     *image.RGBA
	backend Backend
	once    sync.Once
}

func (t *memTexture) Size() image.Point { return t.img.Bounds().Size() }

func (t *memTexture) Release() {
	t.once.Do(func() { t.img = nil })
}

func (t *memTexture) rgba() *image.RGBA { return t.img }
func (t *memTexture) owner() Backend    { return t.backend }

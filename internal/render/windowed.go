package render

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/size"

	"github.com/xabufr/memocadre/internal/config"
)

// runWindowed opens a window through the shiny driver and runs the app
// loop against it. driver.Main requires the calling goroutine, so the loop
// runs inside the driver callback while a helper goroutine drains window
// events.
func runWindowed(cfg config.DisplayConfig, run func(Backend) error) error {
	var runErr error

	driver.Main(func(s screen.Screen) {
		w, err := s.NewWindow(&screen.NewWindowOptions{
			Width:  cfg.Width,
			Height: cfg.Height,
			Title:  "memocadre",
		})
		if err != nil {
			runErr = fmt.Errorf("failed to create window: %w", err)
			return
		}
		defer w.Release()

		surface := image.Point{X: cfg.Width, Y: cfg.Height}
		back, err := s.NewBuffer(surface)
		if err != nil {
			runErr = fmt.Errorf("failed to create backbuffer: %w", err)
			return
		}

		b := &windowedBackend{
			comp: newCompositor(surface),
			scr:  s,
			win:  w,
			size: surface,
			back: back,
			dead: make(chan struct{}),
		}
		go b.drainEvents()

		runErr = run(b)
		b.closeOnce.Do(b.teardown)
	})

	return runErr
}

type windowedBackend struct {
	comp *compositor
	scr  screen.Screen
	win  screen.Window
	size image.Point
	back screen.Buffer

	dead      chan struct{}
	deadOnce  sync.Once
	closeOnce sync.Once
}

// drainEvents keeps the window responsive and watches for the window being
// closed out from under us, which surfaces as ErrDeviceLost on the next
// Present.
func (b *windowedBackend) drainEvents() {
	for {
		switch e := b.win.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				b.markDead()
				return
			}
		case size.Event:
			if e.WidthPx != b.size.X || e.HeightPx != b.size.Y {
				slog.Debug("window resized, keeping configured surface",
					"width", e.WidthPx, "height", e.HeightPx)
			}
		case error:
			slog.Warn("window event error", "error", e)
		}
	}
}

func (b *windowedBackend) markDead() {
	b.deadOnce.Do(func() { close(b.dead) })
}

func (b *windowedBackend) isDead() bool {
	select {
	case <-b.dead:
		return true
	default:
		return false
	}
}

func (b *windowedBackend) Size() image.Point { return b.size }

func (b *windowedBackend) Upload(img *image.RGBA) (Texture, error) {
	if b.isDead() {
		return nil, ErrDeviceLost
	}
	buf, err := b.scr.NewBuffer(img.Bounds().Size())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate texture buffer: %w", err)
	}
	draw.Draw(buf.RGBA(), buf.Bounds(), img, img.Bounds().Min, draw.Src)
	return &windowTexture{buf: buf, backend: b}, nil
}

func (b *windowedBackend) Draw(f Frame) error {
	if err := checkFrameOwnership(b, f); err != nil {
		return err
	}
	b.comp.compose(b.back.RGBA(), f)
	return nil
}

func (b *windowedBackend) Present() error {
	if b.isDead() {
		return ErrDeviceLost
	}
	b.win.Upload(image.Point{}, b.back, b.back.Bounds())
	b.win.Publish()
	if b.isDead() {
		return ErrDeviceLost
	}
	return nil
}

func (b *windowedBackend) Close() error {
	b.closeOnce.Do(b.teardown)
	return nil
}

func (b *windowedBackend) teardown() {
	b.markDead()
	if b.back != nil {
		b.back.Release()
		b.back = nil
	}
	slog.Info("window backend closed")
}

// windowTexture wraps a driver buffer. The driver owns real resources
// behind it, so Release is forwarded immediately and exactly once.
type windowTexture struct {
	buf     screen.Buffer
	backend *windowedBackend
	once    sync.Once
}

func (t *windowTexture) Size() image.Point { return t.buf.Size() }

func (t *windowTexture) Release() {
	t.once.Do(func() { t.buf.Release() })
}

func (t *windowTexture) rgba() *image.RGBA { return t.buf.RGBA() }
func (t *windowTexture) owner() Backend    { return t.backend }

// checkFrameOwnership rejects textures created by a different backend
// before they can be drawn. Handles never migrate between variants.
func checkFrameOwnership(b Backend, f Frame) error {
	for _, l := range []*Layer{f.Base, f.Over} {
		if l == nil {
			continue
		}
		for _, t := range []Texture{l.Background, l.Photo} {
			if t != nil && t.owner() != b {
				return fmt.Errorf("texture belongs to a different backend")
			}
		}
	}
	return nil
}

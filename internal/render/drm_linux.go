//go:build linux

package render

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/xabufr/memocadre/internal/config"
)

// drmBackend drives a display head directly through the kernel's DRM/KMS
// interface: no display server, two dumb scanout buffers, vsync'd page
// flips. Every kernel object it creates (dumb buffers, framebuffers,
// mappings) is destroyed in Close; these are not garbage collected and
// survive process memory, so leaking them degrades the device until
// reboot.
type drmBackend struct {
	comp *compositor
	fd   int

	crtcID      uint32
	connectorID uint32
	mode        drmModeInfo
	size        image.Point

	bufs    [2]*scanoutBuffer
	back    int
	started bool

	canvas *image.RGBA
}

type scanoutBuffer struct {
	handle uint32
	fbID   uint32
	pitch  uint32
	size   uint64
	data   []byte
}

// openDRM opens the card, picks the first connected connector and its
// preferred mode, and allocates the scanout ring. On any failure it tears
// down whatever it already created before returning.
func openDRM(cfg config.DisplayConfig) (Backend, error) {
	fd, err := unix.Open(cfg.Card, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Card, err)
	}

	b := &drmBackend{fd: fd}
	if err := b.pickOutput(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	b.size = image.Point{X: int(b.mode.Hdisplay), Y: int(b.mode.Vdisplay)}
	b.comp = newCompositor(b.size)
	b.canvas = image.NewRGBA(image.Rectangle{Max: b.size})

	for i := range b.bufs {
		buf, err := b.newScanout()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.bufs[i] = buf
	}

	slog.Info("drm output configured",
		"card", cfg.Card,
		"connector", b.connectorID,
		"crtc", b.crtcID,
		"mode", fmt.Sprintf("%dx%d@%d", b.mode.Hdisplay, b.mode.Vdisplay, b.mode.Vrefresh),
	)
	return b, nil
}

func (b *drmBackend) pickOutput() error {
	_, connectors, _, err := getResources(b.fd)
	if err != nil {
		return err
	}

	for _, id := range connectors {
		conn, modes, err := getConnector(b.fd, id)
		if err != nil {
			slog.Warn("failed to probe connector", "connector", id, "error", err)
			continue
		}
		if conn.Connection != connectionConnected || len(modes) == 0 {
			continue
		}
		if conn.EncoderID == 0 {
			continue
		}
		enc, err := getEncoder(b.fd, conn.EncoderID)
		if err != nil || enc.CrtcID == 0 {
			continue
		}

		b.connectorID = id
		b.crtcID = enc.CrtcID
		// Modes arrive preferred-first.
		b.mode = modes[0]
		return nil
	}
	return errors.New("no connected display found")
}

func (b *drmBackend) newScanout() (*scanoutBuffer, error) {
	creq, err := createDumb(b.fd, uint32(b.size.X), uint32(b.size.Y))
	if err != nil {
		return nil, err
	}
	fbID, err := addFB(b.fd, uint32(b.size.X), uint32(b.size.Y), creq.Pitch, creq.Handle)
	if err != nil {
		destroyDumb(b.fd, creq.Handle)
		return nil, err
	}
	data, err := mapDumb(b.fd, creq.Handle, creq.Size)
	if err != nil {
		rmFB(b.fd, fbID)
		destroyDumb(b.fd, creq.Handle)
		return nil, err
	}
	return &scanoutBuffer{
		handle: creq.Handle,
		fbID:   fbID,
		pitch:  creq.Pitch,
		size:   creq.Size,
		data:   data,
	}, nil
}

func (b *drmBackend) Size() image.Point { return b.size }

// Upload keeps pixels in process memory. Dumb buffers are scanout-only on
// most hardware, so textures live on the heap and reach the screen through
// the compose step.
func (b *drmBackend) Upload(img *image.RGBA) (Texture, error) {
	copied := image.NewRGBA(img.Bounds())
	copy(copied.Pix, img.Pix)
	return &memTexture{img: copied, backend: b}, nil
}

func (b *drmBackend) Draw(f Frame) error {
	if err := checkFrameOwnership(b, f); err != nil {
		return err
	}
	b.comp.compose(b.canvas, f)
	return nil
}

// Present copies the composed canvas into the back scanout buffer as
// XRGB8888, flips to it, and blocks until the flip completes. The block is
// the frame pacing: the loop can never outrun the panel.
func (b *drmBackend) Present() error {
	buf := b.bufs[b.back]
	packXRGB(buf.data, b.canvas, int(buf.pitch))

	if !b.started {
		if err := setCrtc(b.fd, b.crtcID, buf.fbID, b.connectorID, &b.mode); err != nil {
			return b.wrapDeviceErr(err)
		}
		b.started = true
		b.back ^= 1
		return nil
	}

	if err := pageFlip(b.fd, b.crtcID, buf.fbID); err != nil {
		return b.wrapDeviceErr(err)
	}
	if err := waitFlip(b.fd); err != nil {
		return b.wrapDeviceErr(err)
	}
	b.back ^= 1
	return nil
}

func (b *drmBackend) wrapDeviceErr(err error) error {
	if errors.Is(err, unix.ENODEV) || errors.Is(err, unix.ENXIO) {
		return fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	return err
}

// Close unmaps and destroys both scanout buffers and their framebuffers,
// then closes the card. Errors are logged rather than aggregated: teardown
// must visit every object regardless.
func (b *drmBackend) Close() error {
	for i, buf := range b.bufs {
		if buf == nil {
			continue
		}
		if buf.data != nil {
			if err := unix.Munmap(buf.data); err != nil {
				slog.Warn("failed to unmap scanout buffer", "error", err)
			}
		}
		if err := rmFB(b.fd, buf.fbID); err != nil {
			slog.Warn("failed to remove framebuffer", "error", err)
		}
		if err := destroyDumb(b.fd, buf.handle); err != nil {
			slog.Warn("failed to destroy dumb buffer", "error", err)
		}
		b.bufs[i] = nil
	}
	err := unix.Close(b.fd)
	slog.Info("drm backend closed")
	return err
}

// packXRGB converts RGBA rows into the little-endian XRGB8888 layout the
// framebuffer scans out, honoring the buffer pitch.
func packXRGB(dst []byte, src *image.RGBA, pitch int) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := dst[y*pitch : y*pitch+w*4]
		for x := 0; x < w; x++ {
			drow[x*4+0] = srow[x*4+2] // B
			drow[x*4+1] = srow[x*4+1] // G
			drow[x*4+2] = srow[x*4+0] // R
			drow[x*4+3] = 0xff
		}
	}
}

// Package render abstracts the drawing surface behind one capability set
// (create surface, upload texture, draw frame, present) implemented by a
// windowed backend (running under a display server) and a direct DRM/KMS
// backend (bare console, kernel page flips). The slideshow controller holds
// "some Backend" and never learns which.
package render

import (
	"errors"
	"image"
)

// ErrDeviceLost reports that the underlying display device is gone (window
// closed, DRM device removed). It is fatal: resource state cannot be
// salvaged, the process should exit non-zero and let the service manager
// restart it.
var ErrDeviceLost = errors.New("render: display device lost")

// Texture is a backend-owned pixel resource uploaded from a decoded photo.
// Handles are bound 1:1 to queue slots through the Pool and must be
// released exactly when their slot is recycled. For the direct backend
// the underlying buffers are a scarce kernel-managed resource, so release
// is synchronous, never deferred to the garbage collector.
//
// A Texture is only valid on the backend that created it.
type Texture interface {
	Size() image.Point
	Release()

	// rgba exposes the backing pixels to the compositor. Unexported on
	// purpose: only this package composes.
	rgba() *image.RGBA
	// owner identifies the creating backend so a handle can never cross
	// backend variants.
	owner() Backend
}

// Layer is everything drawn for one photo: the full-frame backdrop (nil
// means solid black), the photo itself fit-centered, and an optional
// caption strip.
type Layer struct {
	Background Texture
	Photo      Texture
	Caption    *image.RGBA
}

// Frame describes one presented frame. Outside transitions only Base is
// set. During a transition Over carries the incoming photo, blended on top
// of Base with the given opacity; Alpha is the transition progress.
type Frame struct {
	Base  *Layer
	Over  *Layer
	Alpha float64
	// Rotation orients the logical canvas on the physical surface:
	// 0, 90, 180 or 270 degrees clockwise.
	Rotation int
}

// Backend is the platform rendering capability set. Implementations are
// confined to a single goroutine; the controller is that goroutine.
type Backend interface {
	// Size returns the physical surface size in pixels. The logical canvas
	// the controller composes for is this size with the axes swapped for
	// 90/270 degree rotations.
	Size() image.Point

	// Upload creates a backend texture from decoded pixels.
	Upload(img *image.RGBA) (Texture, error)

	// Draw composes a frame into the backbuffer.
	Draw(f Frame) error

	// Present makes the last drawn frame visible: a buffer swap for the
	// windowed backend, a vsync'd page flip for the direct one.
	Present() error

	// Close tears the surface down, releasing every buffer the backend
	// still holds. Required even on error paths: direct-rendering buffers
	// leak at the kernel level otherwise.
	Close() error
}

// LogicalSize returns the canvas size the controller composes for, given a
// surface size and rotation.
func LogicalSize(surface image.Point, rotation int) image.Point {
	if rotation == 90 || rotation == 270 {
		return image.Point{X: surface.Y, Y: surface.X}
	}
	return surface
}

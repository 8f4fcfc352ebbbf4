// Package slideshow owns what is on screen: the display/transition state
// machine and the frame loop driving it. It consumes decoded photos from
// the prefetch queue and typed commands from the control plane, and talks
// to the display only through the render capability set.
package slideshow

import (
	"image"
	"time"

	"github.com/xabufr/memocadre/internal/render"
	"github.com/xabufr/memocadre/internal/types"
)

// entry is one photo plus the display resources built for it. Entries
// backed by a queue slot release through slot recycling; history replays
// (slot == noSlot) own their textures directly.
type entry struct {
	photo    *types.Photo
	slot     int
	photoTex render.Texture
	backdrop render.Texture
	caption  *image.RGBA
}

const noSlot = -1

// state is the screen state: loading (nothing shown yet), displaying one
// photo, or transitioning between two. Transitions are modeled as data so
// a frame at any instant is a pure function of state and clock.
type state interface {
	kind() types.StateKind
}

type loading struct{}

type displaying struct {
	cur     *entry
	shownAt time.Time
}

type transitioning struct {
	from      *entry
	to        *entry
	startedAt time.Time
	duration  time.Duration
	// rotation is captured when the transition starts, like duration;
	// the layers were composed for it and a live settings change must not
	// reorient them mid-fade.
	rotation int
	// recordFrom pushes the outgoing photo into history when the
	// transition completes. False when the transition itself came from a
	// history replay, which would otherwise ping-pong.
	recordFrom bool
}

func (loading) kind() types.StateKind       { return types.StateLoading }
func (displaying) kind() types.StateKind    { return types.StateDisplaying }
func (transitioning) kind() types.StateKind { return types.StateTransitioning }

// progress maps elapsed wall time onto [0, 1]. A zero duration completes
// immediately; the clock is monotonic so suspend/resume cannot run a
// transition backwards.
func progress(startedAt, now time.Time, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	p := float64(now.Sub(startedAt)) / float64(duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// advanceDue reports whether the current photo has been up long enough to
// rotate out.
func advanceDue(shownAt, now time.Time, displayFor time.Duration) bool {
	return now.Sub(shownAt) >= displayFor
}

// frameFor builds the drawable frame for a state. Loading and a nil state
// draw black.
func frameFor(s state, now time.Time, rotation int) render.Frame {
	switch st := s.(type) {
	case displaying:
		return render.Frame{Base: layerFor(st.cur), Rotation: rotation}
	case transitioning:
		return render.Frame{
			Base:     layerFor(st.from),
			Over:     layerFor(st.to),
			Alpha:    progress(st.startedAt, now, st.duration),
			Rotation: st.rotation,
		}
	default:
		return render.Frame{Rotation: rotation}
	}
}

func layerFor(e *entry) *render.Layer {
	if e == nil {
		return nil
	}
	return &render.Layer{
		Background: e.backdrop,
		Photo:      e.photoTex,
		Caption:    e.caption,
	}
}

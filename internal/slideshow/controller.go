package slideshow

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xabufr/memocadre/internal/blur"
	"github.com/xabufr/memocadre/internal/caption"
	"github.com/xabufr/memocadre/internal/config"
	"github.com/xabufr/memocadre/internal/prefetch"
	"github.com/xabufr/memocadre/internal/render"
	"github.com/xabufr/memocadre/internal/types"
)

const (
	// transitionTick paces redraws during a crossfade. The direct backend
	// additionally blocks on vsync, so this is an upper bound on latency,
	// not a frame rate promise.
	transitionTick = 16 * time.Millisecond
	loadingTick    = 100 * time.Millisecond
	idleTick       = 250 * time.Millisecond
	offTick        = 500 * time.Millisecond
)

// Controller runs the frame loop. It is the only goroutine touching the
// backend; everything else reaches it through the queue, the settings
// store and the command channel.
type Controller struct {
	backend  render.Backend
	queue    *prefetch.Queue
	pool     *render.Pool
	history  *prefetch.History
	settings *config.Store
	commands <-chan types.Command

	blur     *blur.Compositor
	fontPath string
	captions *caption.Renderer
	fontSize float64

	state       state
	displayOn   bool
	needsRedraw bool
	blanked     bool
	framesSent  uint64

	status atomic.Pointer[types.Status]
}

// New wires a controller. fontPath may be empty, in which case captions use
// the built-in bitmap face.
func New(
	backend render.Backend,
	queue *prefetch.Queue,
	pool *render.Pool,
	history *prefetch.History,
	settings *config.Store,
	commands <-chan types.Command,
	fontPath string,
) *Controller {
	c := &Controller{
		backend:   backend,
		queue:     queue,
		pool:      pool,
		history:   history,
		settings:  settings,
		commands:  commands,
		blur:      blur.New(),
		fontPath:  fontPath,
		state:     loading{},
		displayOn: true,
	}
	c.publishStatus()
	return c
}

// Status returns the latest published snapshot.
func (c *Controller) Status() types.Status {
	return *c.status.Load()
}

// Run drives the frame loop until the context is cancelled. Render errors
// are fatal and returned; everything else is absorbed.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("slideshow controller started")
	timer := time.NewTimer(loadingTick)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return nil
		case cmd := <-c.commands:
			// One command per frame boundary keeps command handling and
			// drawing strictly interleaved.
			if err := c.apply(cmd, time.Now()); err != nil {
				c.teardown()
				return err
			}
		case <-timer.C:
		}

		now := time.Now()
		if err := c.step(now); err != nil {
			c.teardown()
			return err
		}
		if err := c.present(now); err != nil {
			c.teardown()
			return err
		}
		c.publishStatus()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.wait(now))
	}
}

// step advances the state machine for the current instant.
func (c *Controller) step(now time.Time) error {
	settings := c.settings.Load()

	switch st := c.state.(type) {
	case loading:
		r := c.tryNext()
		if r == nil {
			return nil
		}
		e, err := c.buildEntry(r.Photo, r.Slot, settings)
		if err != nil {
			return err
		}
		c.state = displaying{cur: e, shownAt: now}
		c.needsRedraw = true
		slog.Info("first photo ready", "asset_id", e.photo.AssetID)

	case displaying:
		if !c.displayOn {
			return nil
		}
		if !advanceDue(st.shownAt, now, settings.DisplayDuration.Std()) {
			return nil
		}
		// Photos stay up past their duration until a successor is decoded.
		return c.advance(now, settings)

	case transitioning:
		if progress(st.startedAt, now, st.duration) >= 1 {
			c.finishTransition(now)
		}
		c.needsRedraw = true
	}
	return nil
}

// advance starts a crossfade to the next prefetched photo, if any is ready.
func (c *Controller) advance(now time.Time, settings config.Settings) error {
	r := c.tryNext()
	if r == nil {
		return nil
	}
	e, err := c.buildEntry(r.Photo, r.Slot, settings)
	if err != nil {
		return err
	}
	c.beginTransition(e, now, settings, true)
	return nil
}

func (c *Controller) beginTransition(to *entry, now time.Time, settings config.Settings, recordFrom bool) {
	cur, ok := c.state.(displaying)
	if !ok {
		// Nothing on screen: show directly.
		c.state = displaying{cur: to, shownAt: now}
		c.needsRedraw = true
		return
	}
	c.state = transitioning{
		from:       cur.cur,
		to:         to,
		startedAt:  now,
		duration:   settings.TransitionDuration.Std(),
		rotation:   settings.Rotation,
		recordFrom: recordFrom,
	}
	c.needsRedraw = true
	slog.Debug("transition started",
		"from", cur.cur.photo.AssetID,
		"to", to.photo.AssetID,
		"duration", settings.TransitionDuration.Std(),
	)
}

// finishTransition promotes the incoming photo and releases the outgoing
// one. Release happens here and nowhere else: the outgoing slot is only
// recycled once its pixels can no longer appear on screen.
func (c *Controller) finishTransition(now time.Time) {
	st, ok := c.state.(transitioning)
	if !ok {
		return
	}
	c.releaseEntry(st.from, st.recordFrom)
	c.state = displaying{cur: st.to, shownAt: now}
	c.needsRedraw = true
}

// apply handles one control command.
func (c *Controller) apply(cmd types.Command, now time.Time) error {
	slog.Info("command received", "command", cmd.Kind.String())
	settings := c.settings.Load()

	switch cmd.Kind {
	case types.CommandNext:
		// A pending transition snaps to completion first so from/to
		// resources settle before the next one starts.
		c.finishTransition(now)
		return c.advance(now, settings)

	case types.CommandPrevious:
		c.finishTransition(now)
		photo := c.history.Pop()
		if photo == nil {
			slog.Warn("no previous photo in history")
			return nil
		}
		e, err := c.buildEntry(photo, noSlot, settings)
		if err != nil {
			return err
		}
		c.beginTransition(e, now, settings, false)
		return nil

	case types.CommandReload:
		return c.rebuild(settings)

	case types.CommandDisplayOn:
		if !c.displayOn {
			c.displayOn = true
			c.blanked = false
			c.needsRedraw = true
			// Restart the clock so the photo gets its full time on screen.
			if st, ok := c.state.(displaying); ok {
				c.state = displaying{cur: st.cur, shownAt: now}
			}
		}
		return nil

	case types.CommandDisplayOff:
		c.displayOn = false
		return nil

	default:
		slog.Warn("command not handled by controller", "command", cmd.Kind.String())
		return nil
	}
}

// rebuild regenerates the derived resources (backdrop, caption) of the
// photos currently on screen after a settings change. Photos still in the
// queue pick the new settings up when they are built.
func (c *Controller) rebuild(settings config.Settings) error {
	for _, e := range c.liveEntries() {
		if err := c.decorate(e, settings); err != nil {
			return err
		}
	}
	c.needsRedraw = true
	return nil
}

func (c *Controller) liveEntries() []*entry {
	switch st := c.state.(type) {
	case displaying:
		return []*entry{st.cur}
	case transitioning:
		return []*entry{st.from, st.to}
	default:
		return nil
	}
}

// buildEntry uploads a photo and its derived resources to the backend.
// Upload failures are render failures, hence fatal.
func (c *Controller) buildEntry(photo *types.Photo, slot int, settings config.Settings) (*entry, error) {
	tex, err := c.backend.Upload(photo.Pixels)
	if err != nil {
		return nil, err
	}
	e := &entry{photo: photo, slot: slot, photoTex: tex}
	if slot != noSlot {
		c.pool.BindPhoto(slot, tex)
	}
	if err := c.decorate(e, settings); err != nil {
		return nil, err
	}
	return e, nil
}

// decorate builds or rebuilds the backdrop and caption for an entry.
func (c *Controller) decorate(e *entry, settings config.Settings) error {
	logical := render.LogicalSize(c.backend.Size(), settings.Rotation)

	var backdrop render.Texture
	if settings.Background == "blur" {
		img := c.blur.Background(e.photo.Pixels, logical, settings.Blur.Radius, settings.Blur.Passes)
		tex, err := c.backend.Upload(img)
		if err != nil {
			return err
		}
		backdrop = tex
	}
	if e.slot != noSlot {
		c.pool.BindBackdrop(e.slot, backdrop)
	} else if e.backdrop != nil {
		e.backdrop.Release()
	}
	e.backdrop = backdrop

	e.caption = nil
	if settings.Caption.Enabled && e.photo.HasCaption() {
		r := c.captionRenderer(settings)
		e.caption = r.Render(e.photo, settings.Caption.DateFormat, logical.X*3/4)
	}
	return nil
}

// captionRenderer caches the renderer across photos; a new one is only
// built when the font size changes. An unreadable font warns once here,
// not per decorated photo, because the renderer falls back internally.
func (c *Controller) captionRenderer(settings config.Settings) *caption.Renderer {
	if c.captions == nil || c.fontSize != settings.Caption.FontSize {
		c.captions = caption.NewRenderer(c.fontPath, settings.Caption.FontSize)
		c.fontSize = settings.Caption.FontSize
	}
	return c.captions
}

// releaseEntry retires a photo from the screen. Queue-backed entries
// recycle their slot, which releases the bound textures through the pool
// hook; history replays own their textures and release them directly.
func (c *Controller) releaseEntry(e *entry, record bool) {
	if e == nil {
		return
	}
	if record {
		c.history.Push(e.photo)
	}
	if e.slot != noSlot {
		c.queue.Recycle(e.slot)
		return
	}
	if e.photoTex != nil {
		e.photoTex.Release()
	}
	if e.backdrop != nil {
		e.backdrop.Release()
	}
}

func (c *Controller) present(now time.Time) error {
	settings := c.settings.Load()

	if !c.displayOn {
		if c.blanked {
			return nil
		}
		if err := c.backend.Draw(render.Frame{Rotation: settings.Rotation}); err != nil {
			return err
		}
		if err := c.backend.Present(); err != nil {
			return err
		}
		c.framesSent++
		c.blanked = true
		return nil
	}

	_, inTransition := c.state.(transitioning)
	if !inTransition && !c.needsRedraw {
		return nil
	}

	if err := c.backend.Draw(frameFor(c.state, now, settings.Rotation)); err != nil {
		return err
	}
	if err := c.backend.Present(); err != nil {
		return err
	}
	c.framesSent++
	c.needsRedraw = false
	return nil
}

// wait computes how long the loop may sleep before the next frame matters.
func (c *Controller) wait(now time.Time) time.Duration {
	if !c.displayOn {
		return offTick
	}
	switch st := c.state.(type) {
	case loading:
		return loadingTick
	case transitioning:
		return transitionTick
	case displaying:
		due := st.shownAt.Add(c.settings.Load().DisplayDuration.Std())
		remaining := due.Sub(now)
		if remaining <= 0 {
			// Overdue, waiting on the queue.
			return loadingTick
		}
		if remaining > idleTick {
			return idleTick
		}
		return remaining
	default:
		return idleTick
	}
}

func (c *Controller) tryNext() *prefetch.Ready {
	select {
	case r := <-c.queue.Ready():
		return &r
	default:
		return nil
	}
}

// teardown releases everything still on screen so slot recycling stats and
// kernel resources settle before the backend closes.
func (c *Controller) teardown() {
	switch st := c.state.(type) {
	case displaying:
		c.releaseEntry(st.cur, false)
	case transitioning:
		c.releaseEntry(st.from, false)
		c.releaseEntry(st.to, false)
	}
	c.state = loading{}
	c.pool.ReleaseAll()
	slog.Info("slideshow controller stopped", "frames_presented", c.framesSent)
}

func (c *Controller) publishStatus() {
	s := types.Status{
		State:      c.state.kind(),
		DisplayOn:  c.displayOn,
		QueueReady: c.queue.ReadyCount(),
		FramesSent: c.framesSent,
	}
	switch st := c.state.(type) {
	case displaying:
		s.AssetID = st.cur.photo.AssetID
		s.Location = st.cur.photo.Location
		s.TakenAt = st.cur.photo.TakenAt
	case transitioning:
		s.AssetID = st.to.photo.AssetID
		s.Location = st.to.photo.Location
		s.TakenAt = st.to.photo.TakenAt
		s.Progress = progress(st.startedAt, time.Now(), st.duration)
	}
	c.status.Store(&s)
}

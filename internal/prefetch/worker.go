package prefetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/xabufr/memocadre/internal/config"
	"github.com/xabufr/memocadre/internal/gallery"
	"github.com/xabufr/memocadre/internal/types"
)

const (
	backoffInitial = time.Second
	backoffMax     = 32 * time.Second
	fetchAttempts  = 5
	// idleRetry paces source polling when the catalog is empty.
	idleRetry = 10 * time.Second
)

// Worker pulls assets from the gallery, decodes and downscales them off the
// render thread, and publishes them into the queue. It owns all network and
// decode latency; the render loop never waits on it.
type Worker struct {
	source   gallery.Source
	queue    *Queue
	settings *config.Store

	// maxSize yields the current display bounds; decoded photos are capped
	// to it so queue memory stays proportional to the panel, not the
	// catalog.
	maxSize func() image.Point

	seq uint64
}

// NewWorker wires a worker to its source and queue.
func NewWorker(source gallery.Source, queue *Queue, settings *config.Store, maxSize func() image.Point) *Worker {
	return &Worker{
		source:   source,
		queue:    queue,
		settings: settings,
		maxSize:  maxSize,
	}
}

// Run loops until the context is cancelled. Fetch failures are retried
// with exponential backoff up to a bounded attempt count, then the item is
// skipped; decode failures skip immediately. Neither is ever fatal.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("prefetch worker started", "queue_depth", w.queue.Depth())

	for {
		slot, err := w.queue.Acquire(ctx)
		if err != nil {
			slog.Info("prefetch worker stopping", "fetched", w.seq)
			return nil
		}

		photo, err := w.nextPhoto(ctx)
		if err != nil {
			w.queue.Abandon(slot)
			if ctx.Err() != nil {
				slog.Info("prefetch worker stopping", "fetched", w.seq)
				return nil
			}
			// Source dry or persistently failing: idle, then try again.
			slog.Warn("no photo available, retrying later",
				"error", err,
				"retry_in", idleRetry,
			)
			select {
			case <-time.After(idleRetry):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		w.queue.Publish(slot, photo)
		slog.Debug("photo prefetched",
			"slot", slot,
			"asset_id", photo.AssetID,
			"size", photo.Size(),
			"seq", photo.Seq,
		)
	}
}

// nextPhoto fetches and decodes one displayable photo, skipping corrupt
// assets and retrying transient fetch errors.
func (w *Worker) nextPhoto(ctx context.Context) (*types.Photo, error) {
	for {
		asset, err := w.fetchWithRetry(ctx)
		if err != nil {
			return nil, err
		}

		photo, err := w.decode(asset)
		if err != nil {
			// Corrupt or unsupported image: drop it and move on.
			slog.Warn("failed to decode asset, skipping",
				"asset_id", asset.ID,
				"error", err,
			)
			continue
		}
		return photo, nil
	}
}

func (w *Worker) fetchWithRetry(ctx context.Context) (*gallery.Asset, error) {
	backoff := backoffInitial
	var lastErr error

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		asset, err := w.source.Next(ctx)
		if err == nil {
			return asset, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		slog.Warn("gallery fetch failed",
			"attempt", attempt,
			"max_attempts", fetchAttempts,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
	return nil, fmt.Errorf("gallery fetch failed after %d attempts: %w", fetchAttempts, lastErr)
}

func (w *Worker) decode(asset *gallery.Asset) (*types.Photo, error) {
	img, format, err := image.Decode(bytes.NewReader(asset.Bytes))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	slog.Debug("asset decoded", "asset_id", asset.ID, "format", format)

	rgba := w.scaleToDisplay(img)

	w.seq++
	return &types.Photo{
		ID:       uuid.New(),
		AssetID:  asset.ID,
		Pixels:   rgba,
		Location: asset.Location,
		TakenAt:  asset.TakenAt,
		Seq:      w.seq,
	}, nil
}

// scaleToDisplay converts to RGBA and downscales photos exceeding the
// display bounds, preserving aspect ratio. Photos already small enough are
// only converted, never upscaled; upscaling happens at draw time where the
// compositor can do it against the final placement.
func (w *Worker) scaleToDisplay(img image.Image) *image.RGBA {
	max := w.maxSize()
	src := img.Bounds().Size()

	target := src
	if max.X > 0 && max.Y > 0 && (src.X > max.X || src.Y > max.Y) {
		// Fit inside max, keeping aspect.
		if src.X*max.Y > src.Y*max.X {
			target = image.Point{X: max.X, Y: src.Y * max.X / src.X}
		} else {
			target = image.Point{X: src.X * max.Y / src.Y, Y: max.Y}
		}
		if target.X < 1 {
			target.X = 1
		}
		if target.Y < 1 {
			target.Y = 1
		}
	}

	dst := image.NewRGBA(image.Rectangle{Max: target})
	scaler := filterFor(w.settings.Load().Filter)
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func filterFor(name string) xdraw.Scaler {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor
	case "approx-bilinear":
		return xdraw.ApproxBiLinear
	case "bilinear":
		return xdraw.BiLinear
	default:
		return xdraw.CatmullRom
	}
}

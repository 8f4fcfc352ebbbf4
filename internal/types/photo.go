package types

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Photo is a decoded, display-ready photo produced by the prefetch worker.
// The pixel buffer is owned by the queue slot holding the photo until the
// controller consumes it; after that the controller owns it until the slot
// is recycled.
type Photo struct {
	// ID identifies this fetch, not the source asset. A photo fetched twice
	// gets two IDs.
	ID uuid.UUID

	// AssetID is the opaque identifier of the asset in the photo source.
	AssetID string

	// Pixels is the decoded image, already downscaled to at most the
	// display resolution.
	Pixels *image.RGBA

	// Location is the place the photo was taken, when the source knows it.
	Location string

	// TakenAt is the capture timestamp, zero when unknown.
	TakenAt time.Time

	// Seq is a monotonically increasing fetch sequence number.
	Seq uint64
}

// Size returns the pixel dimensions of the photo.
func (p *Photo) Size() image.Point {
	if p == nil || p.Pixels == nil {
		return image.Point{}
	}
	return p.Pixels.Bounds().Size()
}

// HasCaption reports whether the photo carries any caption metadata.
func (p *Photo) HasCaption() bool {
	return p != nil && (p.Location != "" || !p.TakenAt.IsZero())
}

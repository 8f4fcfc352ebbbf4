// Package gallery provides photo sources: remote catalogs that yield raw
// image bytes plus metadata, one asset at a time. Decoding and scaling are
// the prefetch worker's job, not the source's.
package gallery

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when a listing yields no assets at all. The
// worker keeps retrying the source periodically; the slideshow stays on the
// current photo meanwhile.
var ErrExhausted = errors.New("gallery: source yielded no assets")

// Asset is one photo as delivered by a source: undecoded bytes plus the
// caption metadata the catalog knows about it.
type Asset struct {
	ID       string
	Bytes    []byte
	Location string
	TakenAt  time.Time
}

// Source produces a lazy, possibly paginated sequence of assets. Every call
// may fail independently; callers own retry policy. Implementations must
// preserve pagination state across calls so consecutive Next calls walk the
// whole catalog, then wrap around.
type Source interface {
	Next(ctx context.Context) (*Asset, error)
}

package prefetch

import (
	"sync"

	"github.com/xabufr/memocadre/internal/types"
)

// History is a small ring of already-shown photos backing the "previous"
// command. It is distinct from the queue: its photos have already left
// their slots, so the history owns their pixel buffers outright. Depth is
// kept small because each entry pins a decoded photo in memory.
// Push and Pop run on the render goroutine while Len is read from the
// health monitor, so access is guarded.
type History struct {
	mu    sync.Mutex
	depth int
	items []*types.Photo
}

// NewHistory creates a ring retaining up to depth photos.
func NewHistory(depth int) *History {
	if depth < 1 {
		depth = 1
	}
	return &History{depth: depth}
}

// Push records a photo that just left the screen, evicting the oldest
// entry beyond the ring depth.
func (h *History) Push(p *types.Photo) {
	if p == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, p)
	if len(h.items) > h.depth {
		h.items = h.items[1:]
	}
}

// Pop removes and returns the most recently shown photo, or nil when the
// ring is empty.
func (h *History) Pop() *types.Photo {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return nil
	}
	p := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return p
}

// Len returns the number of retained photos.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Package prefetch decouples photo fetching and decoding from the render
// loop. A worker fills a small bounded queue of decoded photos; the
// controller drains it at its own pace. Backpressure flows toward the
// worker, never toward the renderer.
package prefetch

import (
	"context"
	"sync"

	"github.com/xabufr/memocadre/internal/types"
)

// Ready is a decoded photo together with the queue slot that owns its pixel
// buffer. The slot stays owned by the consumer until Recycle is called.
type Ready struct {
	Slot  int
	Photo *types.Photo
}

// Queue is a fixed set of N slots (N >= 2) cycling through
// empty -> in-flight -> ready -> consumed -> empty. The worker blocks in
// Acquire while no slot is empty, which bounds how far it fetches ahead.
// A slot backing the currently displayed photo is simply never recycled by
// the controller, so the worker can never reuse it.
type Queue struct {
	depth int
	free  chan int
	ready chan Ready

	mu        sync.Mutex
	onRecycle func(slot int)
	published uint64
	recycled  uint64
}

// NewQueue creates a queue with the given depth. onRecycle runs
// synchronously inside Recycle, before the slot becomes reusable; the
// resource pool hooks texture release in here so no GPU handle outlives its
// slot.
func NewQueue(depth int, onRecycle func(slot int)) *Queue {
	if depth < 2 {
		depth = 2
	}
	q := &Queue{
		depth:     depth,
		free:      make(chan int, depth),
		ready:     make(chan Ready, depth),
		onRecycle: onRecycle,
	}
	for i := 0; i < depth; i++ {
		q.free <- i
	}
	return q
}

// Depth returns the slot count.
func (q *Queue) Depth() int { return q.depth }

// Acquire blocks until a slot is empty, returning its index. This is the
// worker's backpressure point.
func (q *Queue) Acquire(ctx context.Context) (int, error) {
	select {
	case slot := <-q.free:
		return slot, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Publish marks an acquired slot ready with its decoded photo. It never
// blocks: ready has one buffer entry per slot and a slot index exists in at
// most one place at a time.
func (q *Queue) Publish(slot int, photo *types.Photo) {
	q.mu.Lock()
	q.published++
	q.mu.Unlock()
	q.ready <- Ready{Slot: slot, Photo: photo}
}

// Abandon returns an acquired slot without publishing, after a decode
// failure or a cancelled fetch.
func (q *Queue) Abandon(slot int) {
	q.free <- slot
}

// Ready returns the channel the controller consumes decoded photos from.
func (q *Queue) Ready() <-chan Ready { return q.ready }

// ReadyCount returns how many decoded photos are waiting.
func (q *Queue) ReadyCount() int { return len(q.ready) }

// Recycle releases a consumed slot's resources and makes it reusable. The
// recycle hook runs before the worker can observe the slot as free.
func (q *Queue) Recycle(slot int) {
	q.mu.Lock()
	q.recycled++
	hook := q.onRecycle
	q.mu.Unlock()

	if hook != nil {
		hook(slot)
	}
	q.free <- slot
}

// Stats returns cumulative publish/recycle counters.
func (q *Queue) Stats() (published, recycled uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.published, q.recycled
}

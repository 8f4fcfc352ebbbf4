package prefetch

import (
	"context"
	"testing"
	"time"

	"github.com/xabufr/memocadre/internal/types"
)

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(2, nil)
	ctx := context.Background()

	s1, err := q.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	s2, err := q.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("two acquires returned the same slot %d", s1)
	}

	// All slots out: the next acquire must block until a recycle.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := q.Acquire(blocked); err == nil {
		t.Fatalf("acquire should block while every slot is held")
	}

	q.Publish(s1, &types.Photo{Seq: 1})
	r := <-q.Ready()
	if r.Slot != s1 {
		t.Fatalf("expected slot %d ready, got %d", s1, r.Slot)
	}
	q.Recycle(r.Slot)

	s3, err := q.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after recycle: %v", err)
	}
	if s3 != s1 {
		t.Errorf("expected the recycled slot %d back, got %d", s1, s3)
	}
}

func TestQueueHeldSlotIsNeverReissued(t *testing.T) {
	q := NewQueue(2, nil)
	ctx := context.Background()

	// Fill both slots and consume one; the consumed slot stays held
	// (never recycled), simulating the photo on screen.
	for i := 0; i < 2; i++ {
		slot, _ := q.Acquire(ctx)
		q.Publish(slot, &types.Photo{Seq: uint64(i)})
	}
	displayed := <-q.Ready()

	// The other slot cycles freely; the displayed slot must not reappear.
	for i := 0; i < 5; i++ {
		next := <-q.Ready()
		if next.Slot == displayed.Slot {
			t.Fatalf("held slot %d was reissued", displayed.Slot)
		}
		q.Recycle(next.Slot)
		slot, err := q.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if slot == displayed.Slot {
			t.Fatalf("held slot %d handed to the worker", displayed.Slot)
		}
		q.Publish(slot, &types.Photo{Seq: uint64(10 + i)})
	}
}

func TestQueueRecycleHookRunsBeforeSlotIsFree(t *testing.T) {
	released := make(map[int]bool)
	var q *Queue
	q = NewQueue(2, func(slot int) {
		// The hook must complete before the worker can observe the slot;
		// the free channel must not contain it yet.
		select {
		case s := <-q.free:
			t.Errorf("slot %d free during recycle hook", s)
		default:
		}
		released[slot] = true
	})
	ctx := context.Background()

	s1, _ := q.Acquire(ctx)
	s2, _ := q.Acquire(ctx)
	q.Publish(s1, &types.Photo{})
	q.Publish(s2, &types.Photo{})
	r := <-q.Ready()
	q.Recycle(r.Slot)

	if !released[r.Slot] {
		t.Fatalf("recycle hook did not run for slot %d", r.Slot)
	}
}

func TestQueueAbandonReturnsSlot(t *testing.T) {
	q := NewQueue(2, nil)
	ctx := context.Background()

	s1, _ := q.Acquire(ctx)
	q.Abandon(s1)

	s2, err := q.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after abandon: %v", err)
	}
	if s2 != s1 {
		t.Errorf("expected abandoned slot %d back, got %d", s1, s2)
	}
	if n := q.ReadyCount(); n != 0 {
		t.Errorf("abandon must not publish, ready count %d", n)
	}
}

func TestQueueStats(t *testing.T) {
	q := NewQueue(2, nil)
	ctx := context.Background()

	slot, _ := q.Acquire(ctx)
	q.Publish(slot, &types.Photo{})
	r := <-q.Ready()
	q.Recycle(r.Slot)

	published, recycled := q.Stats()
	if published != 1 || recycled != 1 {
		t.Errorf("expected 1/1, got %d/%d", published, recycled)
	}
}

func TestQueueMinimumDepth(t *testing.T) {
	q := NewQueue(0, nil)
	if q.Depth() != 2 {
		t.Errorf("expected depth clamped to 2, got %d", q.Depth())
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(2)

	a := &types.Photo{Seq: 1}
	b := &types.Photo{Seq: 2}
	c := &types.Photo{Seq: 3}
	h.Push(a)
	h.Push(b)
	h.Push(c)

	if h.Len() != 2 {
		t.Fatalf("expected depth 2, got %d", h.Len())
	}
	if got := h.Pop(); got != c {
		t.Errorf("expected most recent first, got seq %d", got.Seq)
	}
	if got := h.Pop(); got != b {
		t.Errorf("expected seq 2, got seq %d", got.Seq)
	}
	if got := h.Pop(); got != nil {
		t.Errorf("oldest photo should have been evicted, got seq %d", got.Seq)
	}
}

func TestHistoryIgnoresNil(t *testing.T) {
	h := NewHistory(2)
	h.Push(nil)
	if h.Len() != 0 {
		t.Errorf("nil push must be ignored")
	}
}

func TestHistoryConcurrentLenDuringMutation(t *testing.T) {
	// Push/Pop run on the render goroutine while the health monitor reads
	// Len; run both sides under the race detector.
	h := NewHistory(3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			h.Push(&types.Photo{Seq: uint64(i)})
			if i%2 == 0 {
				h.Pop()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		if n := h.Len(); n < 0 || n > 3 {
			t.Fatalf("len outside ring bounds: %d", n)
		}
	}
	<-done

	if n := h.Len(); n > 3 {
		t.Errorf("depth exceeded after concurrent use: %d", n)
	}
}

package gallery

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakySource fails after serving a fixed number of assets.
type flakySource struct {
	remaining int
	served    int
}

func (f *flakySource) Next(ctx context.Context) (*Asset, error) {
	if f.remaining <= 0 {
		return nil, errors.New("upstream down")
	}
	f.remaining--
	f.served++
	return &Asset{
		ID:       "asset-" + string(rune('a'+f.served)),
		Bytes:    []byte("image-data"),
		Location: "Lagos",
		TakenAt:  time.Date(2020, 1, f.served, 0, 0, 0, 0, time.UTC),
	}, nil
}

func TestCacheWritesThrough(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(&flakySource{remaining: 2}, dir)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Next(ctx); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached assets, got %d", c.Len())
	}
}

func TestCacheReplaysOnUpstreamFailure(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(&flakySource{remaining: 1}, dir)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()

	first, err := c.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	// Upstream is now dead; the cache must replay the stored asset.
	replayed, err := c.Next(ctx)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.ID != first.ID {
		t.Errorf("expected cached asset %s, got %s", first.ID, replayed.ID)
	}
	if string(replayed.Bytes) != "image-data" {
		t.Errorf("cached bytes corrupted: %q", replayed.Bytes)
	}
	if replayed.Location != "Lagos" {
		t.Errorf("cached metadata lost, location %q", replayed.Location)
	}
}

func TestCacheEmptyAndUpstreamDead(t *testing.T) {
	c, err := NewCache(&flakySource{remaining: 0}, t.TempDir())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if _, err := c.Next(context.Background()); err == nil {
		t.Fatalf("expected error with empty cache and dead upstream")
	}
}

func TestCacheIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := NewCache(&flakySource{remaining: 1}, dir)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if _, err := c.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}

	reopened, err := NewCache(&flakySource{remaining: 0}, dir)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("index not persisted, %d assets after reopen", reopened.Len())
	}
	if _, err := reopened.Next(ctx); err != nil {
		t.Errorf("replay after reopen failed: %v", err)
	}
}

func TestCacheDoesNotInterceptCancellation(t *testing.T) {
	c, err := NewCache(&flakySource{remaining: 0}, t.TempDir())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Make the upstream return the cancellation, as a real client would.
	c.upstream = canceledSource{}
	if _, err := c.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation must pass through, got %v", err)
	}
}

type canceledSource struct{}

func (canceledSource) Next(ctx context.Context) (*Asset, error) {
	return nil, context.Canceled
}

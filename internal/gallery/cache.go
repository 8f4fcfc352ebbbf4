package gallery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	indexFile  = "index.msgpack"
	maxEntries = 100
)

// Cache wraps a Source with a write-through disk cache. When the upstream
// fails (flaky WLAN, server down) the cache replays previously fetched
// assets so the frame keeps rotating photos instead of freezing on one.
//
// The cache runs on the worker goroutine only; it needs no locking.
type Cache struct {
	upstream Source
	dir      string
	records  []cacheRecord
	rng      *rand.Rand
}

type cacheRecord struct {
	ID       string    `msgpack:"id"`
	Location string    `msgpack:"location"`
	TakenAt  time.Time `msgpack:"taken_at"`
	Size     int64     `msgpack:"size"`
}

// NewCache opens (or creates) a cache directory around an upstream source.
func NewCache(upstream Source, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	c := &Cache{
		upstream: upstream,
		dir:      dir,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := c.loadIndex(); err != nil {
		// A corrupt index is rebuilt from scratch, not fatal.
		slog.Warn("cache index unreadable, starting empty", "dir", dir, "error", err)
		c.records = nil
	}
	return c, nil
}

// Next fetches from the upstream, falling back to a random cached asset
// when the upstream fails. Upstream results are written through best
// effort; cache write failures never surface to the caller.
func (c *Cache) Next(ctx context.Context) (*Asset, error) {
	asset, err := c.upstream.Next(ctx)
	if err == nil {
		c.store(asset)
		return asset, nil
	}
	if errors.Is(err, context.Canceled) || len(c.records) == 0 {
		return nil, err
	}

	slog.Warn("gallery upstream failed, replaying from cache",
		"error", err,
		"cached_assets", len(c.records),
	)
	return c.replay()
}

// Len returns the number of cached assets.
func (c *Cache) Len() int { return len(c.records) }

func (c *Cache) store(asset *Asset) {
	for _, r := range c.records {
		if r.ID == asset.ID {
			return
		}
	}

	if err := os.WriteFile(c.path(asset.ID), asset.Bytes, 0o644); err != nil {
		slog.Warn("failed to write cached asset", "id", asset.ID, "error", err)
		return
	}

	c.records = append(c.records, cacheRecord{
		ID:       asset.ID,
		Location: asset.Location,
		TakenAt:  asset.TakenAt,
		Size:     int64(len(asset.Bytes)),
	})
	for len(c.records) > maxEntries {
		evicted := c.records[0]
		c.records = c.records[1:]
		if err := os.Remove(c.path(evicted.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to evict cached asset", "id", evicted.ID, "error", err)
		}
	}
	c.saveIndex()
}

func (c *Cache) replay() (*Asset, error) {
	// Random order; sequential replay of a failure window looks like a
	// stuck slideshow.
	for attempts := 0; attempts < 3 && len(c.records) > 0; attempts++ {
		rec := c.records[c.rng.Intn(len(c.records))]
		data, err := os.ReadFile(c.path(rec.ID))
		if err != nil {
			c.drop(rec.ID)
			continue
		}
		return &Asset{
			ID:       rec.ID,
			Bytes:    data,
			Location: rec.Location,
			TakenAt:  rec.TakenAt,
		}, nil
	}
	return nil, ErrExhausted
}

func (c *Cache) drop(id string) {
	for i, r := range c.records {
		if r.ID == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			break
		}
	}
	c.saveIndex()
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.dir, id)
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, &c.records)
}

func (c *Cache) saveIndex() {
	data, err := msgpack.Marshal(c.records)
	if err != nil {
		slog.Warn("failed to encode cache index", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, indexFile), data, 0o644); err != nil {
		slog.Warn("failed to write cache index", "error", err)
	}
}

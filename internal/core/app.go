// Package core assembles the service: gallery, prefetch, render, slideshow
// and control plane, with ordered startup and shutdown.
package core

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/xabufr/memocadre/internal/config"
	"github.com/xabufr/memocadre/internal/control"
	"github.com/xabufr/memocadre/internal/gallery"
	"github.com/xabufr/memocadre/internal/prefetch"
	"github.com/xabufr/memocadre/internal/render"
	"github.com/xabufr/memocadre/internal/slideshow"
	"github.com/xabufr/memocadre/internal/types"
)

// App is the main service orchestrator.
type App struct {
	cfg        *config.Config
	configPath string
	settings   *config.Store

	source  gallery.Source
	queue   *prefetch.Queue
	pool    *render.Pool
	history *prefetch.History

	controller     *slideshow.Controller
	controlHandler *control.Handler
	httpServer     *control.Server

	commands chan types.Command

	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	cancelCtx context.CancelFunc
}

// NewApp loads configuration and builds everything that does not need an
// open display yet.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"gallery_mode", cfg.Gallery.Mode,
	)

	settings, err := config.ApplyOverride(config.OverridePath(configPath), cfg.Slideshow)
	if err != nil {
		slog.Warn("settings override ignored", "error", err)
	}

	a := &App{
		cfg:        cfg,
		configPath: configPath,
		settings:   config.NewStore(settings),
		pool:       render.NewPool(),
		history:    prefetch.NewHistory(cfg.Display.HistoryDepth),
		commands:   make(chan types.Command, 8),
	}
	a.queue = prefetch.NewQueue(cfg.Display.QueueDepth, a.pool.ReleaseSlot)

	if err := a.initializeSource(); err != nil {
		return nil, err
	}
	return a, nil
}

// initializeSource builds the photo source chain: catalog client, wrapped
// in the disk cache when one is configured.
func (a *App) initializeSource() error {
	var src gallery.Source
	if a.cfg.Gallery.URL == "mock" {
		src = gallery.NewMockSource(a.cfg.Display.Width, a.cfg.Display.Height)
		slog.Info("using mock gallery (gallery.url: mock)")
	} else {
		src = gallery.NewImmichSource(a.cfg.Gallery)
		slog.Info("using immich gallery",
			"url", a.cfg.Gallery.URL,
			"mode", a.cfg.Gallery.Mode,
		)
	}

	if a.cfg.Gallery.CacheDir != "" {
		cached, err := gallery.NewCache(src, a.cfg.Gallery.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to open gallery cache: %w", err)
		}
		slog.Info("gallery cache enabled", "dir", a.cfg.Gallery.CacheDir, "assets", cached.Len())
		src = cached
	}

	a.source = src
	return nil
}

// Run opens the display and drives the service until the context is
// cancelled or the renderer fails. It blocks for the whole service
// lifetime; the windowed driver requires running on the main goroutine.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	a.isRunning = true
	a.started = time.Now()
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.cancelCtx = cancel
	a.mu.Unlock()

	slog.Info("memocadre starting", "instance_id", a.cfg.InstanceID)

	return render.Open(a.cfg.Display, func(backend render.Backend) error {
		return a.run(ctx, cancel, backend)
	})
}

// run wires the display-dependent components and blocks in the frame loop.
func (a *App) run(ctx context.Context, cancel context.CancelFunc, backend render.Backend) error {
	surface := backend.Size()
	slog.Info("display opened", "width", surface.X, "height", surface.Y)

	maxSize := func() image.Point {
		return render.LogicalSize(surface, a.settings.Load().Rotation)
	}
	worker := prefetch.NewWorker(a.source, a.queue, a.settings, maxSize)

	a.controller = slideshow.New(
		backend,
		a.queue,
		a.pool,
		a.history,
		a.settings,
		a.commands,
		a.cfg.Display.FontPath,
	)

	a.controlHandler = control.NewHandler(a.cfg, control.CommandCallbacks{
		OnNext:       func() error { return a.enqueue(types.Command{Kind: types.CommandNext}) },
		OnPrevious:   func() error { return a.enqueue(types.Command{Kind: types.CommandPrevious}) },
		OnReload:     a.reloadSettings,
		OnDisplayOn:  func() error { return a.enqueue(types.Command{Kind: types.CommandDisplayOn}) },
		OnDisplayOff: func() error { return a.enqueue(types.Command{Kind: types.CommandDisplayOff}) },
		OnSetOption:  a.setOption,
		OnGetStatus:  func() types.Status { return a.controller.Status() },
		OnShutdown: func() error {
			cancel()
			return nil
		},
	})

	if a.cfg.MQTT.Broker != "" {
		if err := a.controlHandler.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}
		if err := a.controlHandler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		a.wg.Add(1)
		go a.publishStatus(ctx)
	} else {
		slog.Info("mqtt disabled (no broker configured)")
	}

	if a.cfg.HTTP.Addr != "" {
		a.httpServer = control.NewServer(a.cfg, a.controlHandler)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.httpServer.Start(); err != nil {
				slog.Error("http control server failed", "error", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		worker.Run(ctx)
	}()

	a.wg.Add(1)
	go a.watchHealth(ctx)

	slog.Info("memocadre running",
		"queue_depth", a.queue.Depth(),
		"mqtt", a.cfg.MQTT.Broker != "",
		"http", a.cfg.HTTP.Addr,
	)

	// The frame loop is the service; when it returns, everything else
	// winds down.
	err := a.controller.Run(ctx)
	cancel()
	return err
}

// enqueue hands a command to the render loop without ever blocking the
// control plane on it.
func (a *App) enqueue(cmd types.Command) error {
	select {
	case a.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

// reloadSettings re-reads the slideshow section of the config file plus
// the override and swaps the live snapshot. A file that no longer parses
// keeps the previous snapshot and surfaces the error to the caller.
func (a *App) reloadSettings() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("settings reload failed: %w", err)
	}
	settings, err := config.ApplyOverride(config.OverridePath(a.configPath), cfg.Slideshow)
	if err != nil {
		return fmt.Errorf("settings reload failed: %w", err)
	}
	a.settings.Replace(settings)

	slog.Info("settings reloaded",
		"display_duration", settings.DisplayDuration.Std(),
		"background", settings.Background,
	)
	return a.enqueue(types.Command{Kind: types.CommandReload})
}

// setOption patches the live settings, persists them, and nudges the
// render loop to rebuild what the change affects. Unknown paths and bad
// values are rejected here, before anything changes.
func (a *App) setOption(path string, value any) error {
	patched, err := a.settings.Load().Patch(path, value)
	if err != nil {
		return err
	}
	a.settings.Replace(patched)

	overridePath := config.OverridePath(a.configPath)
	if err := config.SaveOverride(overridePath, patched); err != nil {
		// The live value is applied either way; persistence is best effort.
		slog.Warn("failed to persist settings override", "error", err)
	}

	slog.Info("option updated", "path", path, "value", value)
	return a.enqueue(types.Command{Kind: types.CommandReload})
}

// publishStatus periodically pushes status snapshots over MQTT.
func (a *App) publishStatus(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.controlHandler.PublishStatus(a.controller.Status()); err != nil {
				slog.Debug("status publish skipped", "error", err)
			}
		}
	}
}

// Shutdown performs graceful shutdown of all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.isRunning {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	slog.Info("shutting down memocadre")

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(); err != nil {
			slog.Error("failed to stop http server", "error", err)
		}
	}

	if a.controlHandler != nil && a.cfg.MQTT.Broker != "" {
		if err := a.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("all goroutines finished")
	case <-ctx.Done():
		slog.Warn("shutdown timeout exceeded, exiting anyway")
	}

	a.mu.Lock()
	uptime := time.Since(a.started)
	a.isRunning = false
	a.mu.Unlock()

	slog.Info("memocadre shutdown complete", "uptime", uptime)
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout.
func (a *App) ShutdownTimeout() time.Duration {
	timeout := time.Duration(a.cfg.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second
	}
	return timeout
}

package core

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// watchHealth periodically logs process health and warns when resident
// memory exceeds the configured budget. The budget exists because the
// target boards have little RAM and no swap; exceeding it means the OOM
// killer is getting close.
func (a *App) watchHealth(ctx context.Context) {
	defer a.wg.Done()

	interval := time.Duration(a.cfg.Health.ReportIntervalS) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	budget := a.cfg.Health.MemoryBudgetMB * 1024 * 1024

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("health monitoring unavailable", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem, err := proc.MemoryInfo()
			if err != nil {
				slog.Warn("failed to read process memory", "error", err)
				continue
			}
			published, recycled := a.queue.Stats()

			slog.Info("health report",
				"rss_mb", mem.RSS/(1024*1024),
				"uptime_s", int(time.Since(a.started).Seconds()),
				"queue_ready", a.queue.ReadyCount(),
				"photos_published", published,
				"photos_recycled", recycled,
				"textures_held", a.pool.Held(),
				"history_len", a.history.Len(),
			)

			if budget > 0 && mem.RSS > budget {
				slog.Warn("memory budget exceeded",
					"rss_mb", mem.RSS/(1024*1024),
					"budget_mb", a.cfg.Health.MemoryBudgetMB,
				)
			}
		}
	}
}

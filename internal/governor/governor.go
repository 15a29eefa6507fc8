// Package governor bounds and adapts the number of concurrently running
// production tasks.
package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ContentFactory/internal/domain"
)

// Config bounds the concurrency limit.
type Config struct {
	MinLimit     int
	MaxLimit     int
	DefaultLimit int
}

// DefaultConfig mirrors the factory defaults: start at 5, stay within [2, 8].
func DefaultConfig() Config {
	return Config{MinLimit: 2, MaxLimit: 8, DefaultLimit: 5}
}

// Governor tracks active tasks against an adaptive limit. Admission and
// release are the only writers of activeTasks; Rebalance is the only writer of
// limit. The invariant activeTasks <= limit holds for admissions: a shrinking
// limit never evicts running work, it only blocks new admissions until enough
// tasks finish.
type Governor struct {
	mu     sync.Mutex
	cfg    Config
	active int
	limit  int
	closed bool
	freed  chan struct{}
	logger *slog.Logger
}

// New clamps the configured default into [min, max].
func New(cfg Config, logger *slog.Logger) *Governor {
	if cfg.MinLimit <= 0 {
		cfg.MinLimit = 1
	}
	if cfg.MaxLimit < cfg.MinLimit {
		cfg.MaxLimit = cfg.MinLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		cfg:    cfg,
		limit:  clampInt(cfg.DefaultLimit, cfg.MinLimit, cfg.MaxLimit),
		freed:  make(chan struct{}, 1),
		logger: logger,
	}
}

// TryAdmit takes a slot if one is free. Callers that get false must wait and retry.
func (g *Governor) TryAdmit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.active >= g.limit {
		return false
	}
	g.active++
	return true
}

// Admit blocks until a slot is available, the governor is closed or ctx ends.
// poll bounds how long a waiter sleeps when no release wakes it.
func (g *Governor) Admit(ctx context.Context, poll time.Duration) error {
	for {
		if g.TryAdmit() {
			return nil
		}
		if g.Closed() {
			return domain.ErrShuttingDown
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-g.freed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Release returns a slot. It must be called once per successful admission,
// whether the task succeeded or failed.
func (g *Governor) Release() {
	g.mu.Lock()
	if g.active > 0 {
		g.active--
	} else {
		g.logger.Warn("release without matching admission")
	}
	g.mu.Unlock()

	select {
	case g.freed <- struct{}{}:
	default:
	}
}

// Rebalance adapts the limit to sampled load and returns the new limit.
func (g *Governor) Rebalance(cpuPct, memPct float64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	previous := g.limit
	switch {
	case cpuPct > 90 || memPct > 90:
		g.limit = max(g.cfg.MinLimit, g.limit-2)
	case cpuPct < 50 && memPct < 60:
		g.limit = min(g.cfg.MaxLimit, g.limit+1)
	}

	if g.limit != previous {
		g.logger.Info("concurrency limit changed",
			"from", previous, "to", g.limit, "cpu", cpuPct, "mem", memPct)
	}
	return g.limit
}

// Shed lowers the limit in response to a ResourceExhaustedError.
func (g *Governor) Shed(cause *domain.ResourceExhaustedError) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	previous := g.limit
	g.limit = max(g.cfg.MinLimit, g.limit-2)
	if g.limit != previous {
		g.logger.Warn("shedding load", "from", previous, "to", g.limit, "cause", cause.Error())
	}
	return g.limit
}

// Snapshot returns the current active count and limit.
func (g *Governor) Snapshot() (active, limit int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.limit
}

// Close stops admitting new tasks. Running tasks still release normally.
func (g *Governor) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	select {
	case g.freed <- struct{}{}:
	default:
	}
}

// Closed reports whether admission has been stopped.
func (g *Governor) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Drain polls until no task is active or ctx ends. It returns the number of
// tasks still running when it gave up.
func (g *Governor) Drain(ctx context.Context, poll time.Duration) int {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		active, _ := g.Snapshot()
		if active == 0 {
			return 0
		}
		select {
		case <-ctx.Done():
			active, _ = g.Snapshot()
			return active
		case <-ticker.C:
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is used when no positive interval is configured
const DefaultInterval = time.Minute

// Sessions is what the cleaner maintains: expired sessions are evicted and
// sessions changed by timers are written back to storage.
type Sessions interface {
	EvictExpired(ctx context.Context) (int, error)
	FlushDirty(ctx context.Context) (int, error)
}

// Cleaner handles periodic eviction of expired sessions
type Cleaner struct {
	sessions Sessions
	interval time.Duration
	clock    clockwork.Clock
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sessions Sessions, interval time.Duration, clock clockwork.Clock) *Cleaner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cleaner{
		sessions: sessions,
		interval: interval,
		clock:    clock,
	}
}

// Run is the main loop for the cleanup worker. It returns when ctx is done.
func (c *Cleaner) Run(ctx context.Context) error {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return nil
		case <-ticker.Chan():
			c.Cleanup(ctx)
		}
	}
}

// Cleanup runs one cycle: write back timer-driven changes, then evict
func (c *Cleaner) Cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	saved, err := c.sessions.FlushDirty(ctx)
	if err != nil {
		slog.Error("failed to flush sessions", "error", err)
	} else if saved > 0 {
		slog.Debug("flushed sessions", "count", saved)
	}

	evicted, err := c.sessions.EvictExpired(ctx)
	if err != nil {
		slog.Error("failed to evict expired sessions", "error", err)
	}

	if evicted == 0 {
		slog.Debug("no expired sessions found")
		return
	}

	slog.Info("expired sessions evicted", "count", evicted)
}

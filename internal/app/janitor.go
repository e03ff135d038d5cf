package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultJanitorInterval = 10 * time.Minute

type collector interface {
	GC() int
}

// StartJanitor launches a background goroutine that evicts cache entries
// past their retention at a fixed cadence. It returns immediately.
func StartJanitor(ctx context.Context, c collector, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if n := c.GC(); n > 0 {
				logger.Debug("evicted idle cache entries", zap.Int("count", n))
			}
		}
	}()
}

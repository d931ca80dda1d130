// Package vacuum implements the background expiry sweep (component I,
// spec §4.1's AUTOVACUUM / §9's lazy-plus-active expiration model):
// periodically deletes every key whose TTL has passed, independent of
// lazy per-access expiration.
package vacuum

import (
	"context"
	"time"

	"github.com/go-redlite/redlite/internal/dispatch"
	"github.com/go-redlite/redlite/internal/rkit/logfx"
	"github.com/go-redlite/redlite/internal/storage"
)

const pollInterval = 1 * time.Second

// Loop runs until ctx is cancelled, calling Store.Vacuum whenever the
// dispatcher's Config has autovacuum enabled and the configured interval
// has elapsed. Matches the fn(ctx context.Context) error shape
// processfx.StartGoroutine expects.
func Loop(store *storage.Store, cfg *dispatch.Config, logger *logfx.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var last time.Time

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				mode, intervalMillis := cfg.AutoVacuum()
				if mode != "on" {
					continue
				}

				interval := time.Duration(intervalMillis) * time.Millisecond
				if interval <= 0 || time.Since(last) < interval {
					continue
				}

				last = time.Now()

				n, err := store.Vacuum(ctx)
				if err != nil {
					if logger != nil {
						logger.ErrorContext(ctx, "vacuum sweep failed", "error", err)
					}

					continue
				}

				if n > 0 && logger != nil {
					logger.DebugContext(ctx, "vacuum swept expired keys", "count", n)
				}
			}
		}
	}
}

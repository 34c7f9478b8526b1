package authcore

import (
	"context"
	"time"
)

// Sweep expunges refresh tokens past their expiry and activity entries older
// than the Audit.Retention window. The background loop started by
// [Builder.Build] calls it on every SweepInterval tick; it is exported so
// operators can run a pass by hand.
func (e *Engine) Sweep(ctx context.Context) {
	if n, err := e.refresh.DeleteExpired(ctx, e.now()); err != nil {
		e.logger.Error("expired token sweep failed", "error", err)
	} else if n > 0 {
		e.logger.Info("expired refresh tokens expunged", "count", n)
	}

	if e.activity == nil || e.config.Audit.Retention <= 0 {
		return
	}
	cutoff := e.now().Add(-e.config.Audit.Retention)
	if n, err := e.activity.DeleteBefore(ctx, cutoff); err != nil {
		e.logger.Error("activity retention sweep failed", "error", err)
	} else if n > 0 {
		e.logger.Info("activity entries past retention expunged", "count", n)
	}
}

func (e *Engine) sweepLoop(interval time.Duration) {
	defer e.sweepWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Sweep(context.Background())
		case <-e.sweepStop:
			return
		}
	}
}

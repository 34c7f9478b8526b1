package rate

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Failover serves from a shared primary store and degrades to the
// in-process fallback when the primary errors. Availability beats perfectly
// synchronized enforcement: a node-local budget during an outage is better
// than rejecting or waving through all logins.
type Failover struct {
	primary  Store
	fallback Store
	cooldown time.Duration
	logger   *slog.Logger

	downUntil atomic.Int64 // unix nanos; 0 when primary is trusted
}

// NewFailover wraps primary with fallback. After a primary error the
// primary is skipped for cooldown before being probed again.
func NewFailover(primary, fallback Store, cooldown time.Duration, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Degraded reports whether the limiter is currently running on the
// in-process fallback.
func (f *Failover) Degraded() bool {
	return time.Now().UnixNano() < f.downUntil.Load()
}

func (f *Failover) active() Store {
	if f.Degraded() {
		return f.fallback
	}
	return f.primary
}

func (f *Failover) markDown(err error) {
	f.downUntil.Store(time.Now().Add(f.cooldown).UnixNano())
	f.logger.Warn("counter store unavailable, using in-process fallback",
		"cooldown", f.cooldown, "error", err)
}

func (f *Failover) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := f.active().Incr(ctx, key, ttl)
	if errors.Is(err, ErrStoreUnavailable) {
		f.markDown(err)
		return f.fallback.Incr(ctx, key, ttl)
	}
	return count, err
}

func (f *Failover) Get(ctx context.Context, key string) (int64, error) {
	count, err := f.active().Get(ctx, key)
	if errors.Is(err, ErrStoreUnavailable) {
		f.markDown(err)
		return f.fallback.Get(ctx, key)
	}
	return count, err
}

func (f *Failover) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := f.active().TTL(ctx, key)
	if errors.Is(err, ErrStoreUnavailable) {
		f.markDown(err)
		return f.fallback.TTL(ctx, key)
	}
	return ttl, err
}

func (f *Failover) Clear(ctx context.Context, keys ...string) error {
	// Clear both: a success must reset counters wherever they accumulated,
	// otherwise a store flap resurrects stale failures.
	err := f.active().Clear(ctx, keys...)
	if errors.Is(err, ErrStoreUnavailable) {
		f.markDown(err)
		err = nil
	}
	if fbErr := f.fallback.Clear(ctx, keys...); fbErr != nil && err == nil {
		err = fbErr
	}
	return err
}

func (f *Failover) AddToSet(ctx context.Context, key, member string, ttl time.Duration) (int64, error) {
	card, err := f.active().AddToSet(ctx, key, member, ttl)
	if errors.Is(err, ErrStoreUnavailable) {
		f.markDown(err)
		return f.fallback.AddToSet(ctx, key, member, ttl)
	}
	return card, err
}

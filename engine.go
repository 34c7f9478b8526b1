package authcore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bizware/authcore/internal/csrf"
	"github.com/bizware/authcore/internal/rate"
	"github.com/bizware/authcore/jwt"
	"github.com/bizware/authcore/password"
	"github.com/bizware/authcore/store"
)

// Engine is the authentication core. Build one through [New]; the zero value
// is not usable. All methods are safe for concurrent use.
type Engine struct {
	config Config

	accounts store.AccountStore
	refresh  store.RefreshStore
	activity store.ActivityStore

	limiter  *rate.Limiter
	failover *rate.Failover
	csrf     *csrf.Guard
	tokens   *jwt.Manager
	hasher   *password.Hasher

	audit         *activityDispatcher
	metrics       *Metrics
	logger        *slog.Logger
	attackHandler func(AttackSignal)

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once

	// now is swapped in tests.
	now func() time.Time
}

// Close stops the background sweep and flushes the activity dispatcher. Call
// it on shutdown; pending entries are delivered before Close returns. Safe to
// call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.sweepStop != nil {
			close(e.sweepStop)
			e.sweepWG.Wait()
		}
		e.audit.Close()
	})
}

// CookieSettings exposes the device-cookie shape for the transport layer.
func (e *Engine) CookieSettings() CookieConfig {
	return e.config.Cookie
}

// Degraded reports whether the shared limiter store is currently bypassed in
// favor of the in-process fallback.
func (e *Engine) Degraded() bool {
	return e.failover != nil && e.failover.Degraded()
}

// DroppedActivity reports how many activity entries were shed because the
// dispatch buffer was full.
func (e *Engine) DroppedActivity() uint64 {
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counter values for an exporter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// record enqueues an activity entry. Recording never fails a flow: with the
// dispatcher disabled it is a no-op.
func (e *Engine) record(ctx context.Context, event store.EventType, accountID string, rc RequestContext, meta map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, store.ActivityEntry{
		AccountID: accountID,
		Event:     event,
		Timestamp: e.now(),
		IP:        rc.IP,
		UserAgent: rc.UserAgent,
		DeviceID:  rc.DeviceID,
		Metadata:  meta,
	})
}

func (e *Engine) handleSignal(sig rate.Signal) {
	as := signalFromRate(sig)
	e.metrics.Inc(MetricAttackSignal)
	e.logger.Warn("attack signal",
		"kind", as.Kind,
		"ip", as.IP,
		"account_key", as.AccountKey,
		"count", as.Count)
	e.record(context.Background(), store.EventSuspiciousActivity, "", RequestContext{IP: as.IP}, map[string]string{
		"signal":      as.Kind,
		"account_key": as.AccountKey,
	})
	if e.attackHandler != nil {
		e.attackHandler(as)
	}
}

package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Dimension is one independent axis along which login attempts are counted.
type Dimension string

const (
	DimensionGlobal  Dimension = "global"
	DimensionDevice  Dimension = "device"
	DimensionIP      Dimension = "ip"
	DimensionAccount Dimension = "account"
	// DimensionBudget covers the auxiliary per-surface budgets enforced by
	// EnforceBudget; their keys are surface-specific, not a login dimension.
	DimensionBudget Dimension = "budget"
)

// LimitError reports which dimension tripped and when retrying makes sense.
type LimitError struct {
	Dimension  Dimension
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited on %s dimension, retry after %s", e.Dimension, e.RetryAfter)
}

// SignalKind classifies derived attack signals. Signals feed monitoring,
// never direct blocking.
type SignalKind string

const (
	// SignalDistributedAttack fires when one account draws failures from
	// many distinct source IPs.
	SignalDistributedAttack SignalKind = "distributed_attack"
	// SignalCredentialStuffing fires on high-velocity attempts from one IP.
	SignalCredentialStuffing SignalKind = "credential_stuffing"
)

// Signal is one derived attack observation.
type Signal struct {
	Kind       SignalKind
	AccountKey string // hashed identifier, never the raw email
	IP         string
	Count      int64
}

// Config holds the limiter ceilings and windows.
type Config struct {
	GlobalMax    int
	GlobalWindow time.Duration

	DeviceMax    int
	DeviceWindow time.Duration

	IPMax    int
	IPWindow time.Duration

	AccountMax    int
	AccountWindow time.Duration

	DistinctIPThreshold int
	DistinctIPWindow    time.Duration

	VelocityThreshold int
	VelocityWindow    time.Duration
}

// Limiter evaluates the four dimensions cheapest-first against a counter
// store, and derives non-blocking attack signals from the failure stream.
type Limiter struct {
	store    Store
	config   Config
	onSignal func(Signal)
	logger   *slog.Logger
}

// New creates a [Limiter] on the given counter store. onSignal may be nil.
func New(store Store, cfg Config, onSignal func(Signal), logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:    store,
		config:   cfg,
		onSignal: onSignal,
		logger:   logger,
	}
}

// hashIdentifier keys account counters by a sha256 prefix so raw emails
// never appear in the counter store.
func hashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(identifier)))
	return hex.EncodeToString(sum[:])[:16]
}

func globalKey() string            { return "rl:global:login" }
func ipKey(ip string) string       { return "rl:ip:" + ip }
func deviceKey(id string) string   { return "rl:device:" + id }
func accountKey(id string) string  { return "rl:account:" + hashIdentifier(id) }
func distinctKey(id string) string { return "attack:distributed:" + hashIdentifier(id) }
func velocityKey(ip string) string { return "attack:velocity:" + ip }

func (l *Limiter) retryAfter(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

// Allow gates a login attempt before any credential work. The global
// counter counts every attempt (spike detection); device, IP, and account
// counters count only failures and are read here without incrementing.
// The first violated dimension short-circuits.
func (l *Limiter) Allow(ctx context.Context, identifier, ip, deviceID string) error {
	count, err := l.store.Incr(ctx, globalKey(), l.config.GlobalWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.GlobalMax) {
		l.logger.Error("global login spike detected", "count", count, "max", l.config.GlobalMax)
		return &LimitError{
			Dimension:  DimensionGlobal,
			RetryAfter: l.retryAfter(ctx, globalKey(), l.config.GlobalWindow),
		}
	}

	if deviceID != "" {
		if err := l.check(ctx, deviceKey(deviceID), l.config.DeviceMax, l.config.DeviceWindow, DimensionDevice); err != nil {
			return err
		}
	}

	if ip != "" {
		if err := l.check(ctx, ipKey(ip), l.config.IPMax, l.config.IPWindow, DimensionIP); err != nil {
			return err
		}
	}

	if identifier != "" {
		if err := l.check(ctx, accountKey(identifier), l.config.AccountMax, l.config.AccountWindow, DimensionAccount); err != nil {
			return err
		}
	}

	return nil
}

func (l *Limiter) check(ctx context.Context, key string, max int, window time.Duration, dim Dimension) error {
	count, err := l.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(max) {
		l.logger.Warn("login rate limit exceeded", "dimension", string(dim), "count", count)
		return &LimitError{
			Dimension:  dim,
			RetryAfter: l.retryAfter(ctx, key, window),
		}
	}

	return nil
}

// RecordFailure charges a failed attempt to every applicable dimension and
// feeds the attack-signal detectors.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip, deviceID string) error {
	if ip != "" {
		if _, err := l.store.Incr(ctx, ipKey(ip), l.config.IPWindow); err != nil {
			return err
		}
	}
	if identifier != "" {
		if _, err := l.store.Incr(ctx, accountKey(identifier), l.config.AccountWindow); err != nil {
			return err
		}
	}
	if deviceID != "" {
		if _, err := l.store.Incr(ctx, deviceKey(deviceID), l.config.DeviceWindow); err != nil {
			return err
		}
	}

	l.detectSignals(ctx, identifier, ip)

	return nil
}

// Reset clears every counter the (identifier, ip, device) triple touched,
// so transient mistypes carry no penalty after an eventual success.
func (l *Limiter) Reset(ctx context.Context, identifier, ip, deviceID string) error {
	keys := make([]string, 0, 3)
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if identifier != "" {
		keys = append(keys, accountKey(identifier))
	}
	if deviceID != "" {
		keys = append(keys, deviceKey(deviceID))
	}
	if len(keys) == 0 {
		return nil
	}

	return l.store.Clear(ctx, keys...)
}

// Attempts reports the current failure count for an identifier.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int64, error) {
	return l.store.Get(ctx, accountKey(identifier))
}

// detectSignals derives the distributed-attack and credential-stuffing
// signals. Best-effort: a store error here is logged and dropped.
func (l *Limiter) detectSignals(ctx context.Context, identifier, ip string) {
	if identifier != "" && ip != "" {
		card, err := l.store.AddToSet(ctx, distinctKey(identifier), ip, l.config.DistinctIPWindow)
		if err != nil {
			l.logger.Debug("distinct-ip detector unavailable", "error", err)
		} else if card >= int64(l.config.DistinctIPThreshold) {
			l.emit(Signal{
				Kind:       SignalDistributedAttack,
				AccountKey: hashIdentifier(identifier),
				IP:         ip,
				Count:      card,
			})
		}
	}

	if ip != "" {
		count, err := l.store.Incr(ctx, velocityKey(ip), l.config.VelocityWindow)
		if err != nil {
			l.logger.Debug("velocity detector unavailable", "error", err)
		} else if count >= int64(l.config.VelocityThreshold) {
			l.emit(Signal{
				Kind:  SignalCredentialStuffing,
				IP:    ip,
				Count: count,
			})
		}
	}
}

func (l *Limiter) emit(sig Signal) {
	l.logger.Error("attack signal", "kind", string(sig.Kind),
		"account", sig.AccountKey, "ip", sig.IP, "count", sig.Count)
	if l.onSignal != nil {
		l.onSignal(sig)
	}
}

// EnforceBudget is a generic increment-and-check for the auxiliary public
// surfaces (force-logout, password-reset requests).
func (l *Limiter) EnforceBudget(ctx context.Context, key string, max int, window time.Duration) error {
	count, err := l.store.Incr(ctx, "rl:"+key, window)
	if err != nil {
		return err
	}
	if count > int64(max) {
		return &LimitError{
			Dimension:  DimensionBudget,
			RetryAfter: l.retryAfter(ctx, "rl:"+key, window),
		}
	}

	return nil
}

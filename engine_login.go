package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizware/authcore/internal/rate"
	"github.com/bizware/authcore/store"
)

// Login verifies the credential and, on success, binds a fresh device
// session and mints a token pair. Unknown identifiers and wrong passwords
// return the same ErrInvalidCredentials; a dummy hash comparison keeps the
// two paths on comparable timing.
func (e *Engine) Login(ctx context.Context, identifier, secret string, rc RequestContext) (*LoginResult, error) {
	if err := e.allowAttempt(ctx, identifier, rc); err != nil {
		return nil, err
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.hasher.DummyVerify()
			e.chargeFailure(ctx, identifier, rc)
			e.metrics.Inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	now := e.now()
	if account.Locked(now) {
		return nil, &LockedError{RetryAfter: account.LockUntil.Sub(now)}
	}
	if account.Status != store.AccountActive {
		return nil, ErrAccountDisabled
	}

	if !e.hasher.Verify(account.PasswordHash, secret) {
		return nil, e.failLogin(ctx, account, identifier, rc)
	}

	return e.establishSession(ctx, account, store.EventLogin, rc)
}

// allowAttempt runs the limiter gate. Counter-store errors fail open: the
// failover already absorbed a redis outage, so anything left is logged and
// the attempt proceeds rather than locking every caller out.
func (e *Engine) allowAttempt(ctx context.Context, identifier string, rc RequestContext) error {
	if !e.config.RateLimit.Enabled {
		return nil
	}
	err := e.limiter.Allow(ctx, identifier, rc.IP, rc.DeviceID)
	if err == nil {
		return nil
	}
	var le *rate.LimitError
	if errors.As(err, &le) {
		e.metrics.Inc(MetricLoginRateLimited)
		e.metrics.Inc(MetricRateLimitHit)
		return &RateLimitedError{
			Dimension:  string(le.Dimension),
			RetryAfter: le.RetryAfter,
		}
	}
	e.logger.Warn("rate limit check unavailable, allowing attempt", "error", err)
	return nil
}

// chargeFailure records a failed attempt against the limiter. Best-effort.
func (e *Engine) chargeFailure(ctx context.Context, identifier string, rc RequestContext) {
	if !e.config.RateLimit.Enabled {
		return
	}
	if err := e.limiter.RecordFailure(ctx, identifier, rc.IP, rc.DeviceID); err != nil {
		e.logger.Warn("failure not charged to limiter", "error", err)
	}
}

// failLogin handles a wrong password for a known account: bump the failure
// count, arm the lockout at the threshold, charge the limiter, record the
// activity. Always returns ErrInvalidCredentials; the caller learns about
// the lockout on the next attempt.
func (e *Engine) failLogin(ctx context.Context, account *store.Account, identifier string, rc RequestContext) error {
	now := e.now()
	account.FailedAttempts++

	meta := map[string]string{"attempts": fmt.Sprintf("%d", account.FailedAttempts)}
	if account.FailedAttempts >= e.config.Lockout.MaxFailures {
		account.LockUntil = now.Add(e.config.Lockout.Duration)
		e.metrics.Inc(MetricAccountLocked)
		e.record(ctx, store.EventAccountLocked, account.ID, rc, nil)
	}
	account.UpdatedAt = now

	if err := e.accounts.Update(ctx, account); err != nil {
		e.logger.Error("failed-attempt update lost", "account_id", account.ID, "error", err)
	}

	e.chargeFailure(ctx, identifier, rc)
	e.metrics.Inc(MetricLoginFailure)
	e.record(ctx, store.EventFailedLogin, account.ID, rc, meta)

	return ErrInvalidCredentials
}

// establishSession is the shared success path of Login and Register: clear
// failure state, bind the device, persist, reset counters, mint tokens.
func (e *Engine) establishSession(ctx context.Context, account *store.Account, event store.EventType, rc RequestContext) (*LoginResult, error) {
	now := e.now()

	deviceID, err := e.bindDevice(account, rc, now)
	if err != nil {
		return nil, err
	}
	account.FailedAttempts = 0
	account.LockUntil = time.Time{}
	account.UpdatedAt = now

	if err := e.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("session bind: %w", err)
	}

	if e.config.RateLimit.Enabled {
		if err := e.limiter.Reset(ctx, account.Identifier, rc.IP, rc.DeviceID); err != nil {
			e.logger.Warn("limiter reset failed", "error", err)
		}
	}

	tokens, err := e.issueTokens(ctx, account, deviceID, rc)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricSessionCreated)
	switch event {
	case store.EventLogin:
		e.metrics.Inc(MetricLoginSuccess)
	case store.EventRegistration:
		e.metrics.Inc(MetricRegistrationSuccess)
	}
	e.record(ctx, event, account.ID, RequestContext{IP: rc.IP, UserAgent: rc.UserAgent, DeviceID: deviceID}, nil)

	return &LoginResult{
		Account:  account,
		Tokens:   tokens,
		DeviceID: deviceID,
	}, nil
}

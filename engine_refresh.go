package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bizware/authcore/store"
)

// newRefreshSecret mints the opaque refresh token value: 40 random bytes,
// hex-encoded. No structure, nothing to parse, nothing to forge offline.
func newRefreshSecret() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// issueTokens mints one access/refresh pair bound to the device session.
func (e *Engine) issueTokens(ctx context.Context, account *store.Account, deviceID string, rc RequestContext) (TokenPair, error) {
	access, err := e.tokens.Create(account.ID, rc.IP, rc.UserAgent)
	if err != nil {
		return TokenPair{}, fmt.Errorf("access token: %w", err)
	}

	secret, err := newRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}

	now := e.now()
	rt := &store.RefreshToken{
		AccountID:   account.ID,
		Token:       secret,
		DeviceID:    deviceID,
		ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
		CreatedByIP: rc.IP,
		UserAgent:   rc.UserAgent,
		CreatedAt:   now,
	}
	if err := e.refresh.Create(ctx, rt); err != nil {
		return TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: secret}, nil
}

// Refresh rotates a refresh token: the old token is retired with a forward
// pointer to its successor, and a fresh access/refresh pair is issued.
//
// Presenting an already-revoked token is treated as replay of a stolen
// token: every live token for the account is revoked and the holder has to
// log in again. Two racing refreshes on the same token are safe for the same
// reason; the revocation is a compare-and-set, the loser observes Revoked
// and fails without a second rotation.
func (e *Engine) Refresh(ctx context.Context, oldToken, cookieDeviceID string, rc RequestContext) (TokenPair, error) {
	rt, err := e.refresh.Get(ctx, oldToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metrics.Inc(MetricRefreshFailure)
			return TokenPair{}, ErrTokenNotFound
		}
		return TokenPair{}, fmt.Errorf("token lookup: %w", err)
	}

	now := e.now()
	if rt.Revoked {
		return TokenPair{}, e.handleReplay(ctx, rt, rc)
	}
	if rt.Expired(now) {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, ErrTokenInactive
	}

	account, err := e.accounts.GetByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrTokenInactive
		}
		return TokenPair{}, fmt.Errorf("account lookup: %w", err)
	}
	if account.Status != store.AccountActive {
		return TokenPair{}, ErrAccountDisabled
	}

	// A displaced session keeps its refresh token until it tries to use
	// it; the binding check here is where it dies.
	if err := validateDevice(account, cookieDeviceID); err != nil || rt.DeviceID != cookieDeviceID {
		e.retireToken(ctx, oldToken, "")
		e.metrics.Inc(MetricDeviceRejected)
		e.metrics.Inc(MetricRefreshFailure)
		if err == nil {
			err = &SessionExpiredError{Reason: ReasonDeviceMismatch}
		}
		return TokenPair{}, err
	}

	secret, err := newRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}

	// CAS gate: exactly one rotation wins.
	if err := e.refresh.Revoke(ctx, oldToken, secret, now); err != nil {
		if errors.Is(err, store.ErrAlreadyRevoked) {
			return TokenPair{}, ErrTokenInactive
		}
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrTokenNotFound
		}
		return TokenPair{}, fmt.Errorf("rotate: %w", err)
	}

	access, err := e.tokens.Create(account.ID, rc.IP, rc.UserAgent)
	if err != nil {
		return TokenPair{}, fmt.Errorf("access token: %w", err)
	}

	next := &store.RefreshToken{
		AccountID:   account.ID,
		Token:       secret,
		DeviceID:    rt.DeviceID,
		ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
		CreatedByIP: rc.IP,
		UserAgent:   rc.UserAgent,
		CreatedAt:   now,
	}
	if err := e.refresh.Create(ctx, next); err != nil {
		return TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}

	// Bookkeeping on the retired token and the account's last-seen fields.
	// Best-effort; the rotation already succeeded.
	if err := e.refresh.TouchLastUsed(ctx, oldToken, now); err != nil {
		e.logger.Error("last-used not recorded", "account_id", account.ID, "error", err)
	}
	account.LastLoginIP = rc.IP
	account.LastLoginAt = now
	account.UpdatedAt = now
	if err := e.accounts.Update(ctx, account); err != nil {
		e.logger.Error("last-seen update lost", "account_id", account.ID, "error", err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.record(ctx, store.EventTokenRefresh, account.ID, rc, nil)

	return TokenPair{AccessToken: access, RefreshToken: secret}, nil
}

// handleReplay is the reuse-detection response: revoke every live token for
// the account so the legitimate holder and the thief both start over.
func (e *Engine) handleReplay(ctx context.Context, rt *store.RefreshToken, rc RequestContext) error {
	e.metrics.Inc(MetricReplayDetected)
	e.metrics.Inc(MetricRefreshFailure)
	n, err := e.refresh.RevokeAllFor(ctx, rt.AccountID, e.now())
	if err != nil {
		e.logger.Error("replay response failed", "account_id", rt.AccountID, "error", err)
	} else if n > 0 {
		e.logger.Warn("revoked token replayed, account sessions terminated",
			"account_id", rt.AccountID, "revoked", n)
	}
	e.record(ctx, store.EventSuspiciousActivity, rt.AccountID, rc, map[string]string{
		"reason": "refresh_token_reuse",
	})
	return ErrTokenInactive
}

// retireToken revokes without a successor. Best-effort.
func (e *Engine) retireToken(ctx context.Context, token, replacedBy string) {
	err := e.refresh.Revoke(ctx, token, replacedBy, e.now())
	if err != nil && !errors.Is(err, store.ErrAlreadyRevoked) && !errors.Is(err, store.ErrNotFound) {
		e.logger.Error("token not retired", "error", err)
	}
}

// Revoke retires one refresh token belonging to the account. Cross-account
// tokens answer ErrTokenNotFound, same as missing ones. Revoking an
// already-revoked token succeeds; revocation is a terminal state, not an
// event.
func (e *Engine) Revoke(ctx context.Context, token, accountID string) error {
	if _, err := e.refresh.GetForAccount(ctx, token, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("token lookup: %w", err)
	}

	err := e.refresh.Revoke(ctx, token, "", e.now())
	if errors.Is(err, store.ErrAlreadyRevoked) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// RevokeAll terminates every session for the account: all live refresh
// tokens are revoked and the device binding is cleared.
func (e *Engine) RevokeAll(ctx context.Context, accountID string, rc RequestContext) error {
	if _, err := e.refresh.RevokeAllFor(ctx, accountID, e.now()); err != nil {
		return fmt.Errorf("revoke all: %w", err)
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err == nil {
		e.clearBinding(ctx, account)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("account lookup: %w", err)
	}

	e.metrics.Inc(MetricLogoutAll)
	e.metrics.Inc(MetricSessionInvalidated)
	e.record(ctx, store.EventLogoutAll, accountID, rc, nil)
	return nil
}

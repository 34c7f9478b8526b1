package authcore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizware/authcore/internal/rate"
	"github.com/bizware/authcore/store"
)

// bindDevice mints a device id and makes it the account's single active
// session. The previous binding, if any, is overwritten; its holder discovers
// the displacement on its next authenticated request.
func (e *Engine) bindDevice(account *store.Account, rc RequestContext, now time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	deviceID := hex.EncodeToString(buf)

	account.ActiveDeviceID = deviceID
	account.SessionCreatedAt = now
	account.SessionCount++
	account.LastLoginIP = rc.IP
	account.LastLoginUA = rc.UserAgent
	account.LastLoginAt = now

	return deviceID, nil
}

// validateDevice checks the cookie device id against the account's active
// binding. Constant-time compare; the two failure reasons map to the same
// external status.
func validateDevice(account *store.Account, cookieDeviceID string) error {
	if cookieDeviceID == "" {
		return &SessionExpiredError{Reason: ReasonMissingCookie}
	}
	if subtle.ConstantTimeCompare([]byte(account.ActiveDeviceID), []byte(cookieDeviceID)) != 1 {
		return &SessionExpiredError{Reason: ReasonDeviceMismatch}
	}
	return nil
}

// Authenticate verifies an access token and revalidates the device binding
// against a fresh account read, so a displaced session dies even when its
// access token is still within TTL. Claim/context mismatches are logged,
// never blocked.
func (e *Engine) Authenticate(ctx context.Context, accessToken, cookieDeviceID string, rc RequestContext) (*store.Account, error) {
	start := e.now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	claims, err := e.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &SessionExpiredError{Reason: ReasonDeviceMismatch}
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if account.Status != store.AccountActive {
		return nil, ErrAccountDisabled
	}

	if err := validateDevice(account, cookieDeviceID); err != nil {
		e.metrics.Inc(MetricDeviceRejected)
		return nil, err
	}

	if anomalies := claims.Anomalies(rc.IP, rc.UserAgent); len(anomalies) > 0 {
		e.logger.Warn("login context anomaly",
			"account_id", account.ID,
			"anomalies", anomalies,
			"ip", rc.IP)
	}

	return account, nil
}

// Logout revokes the presented refresh token and clears the device binding.
// Unknown tokens are ignored so logout stays idempotent.
func (e *Engine) Logout(ctx context.Context, accountID, refreshToken string, rc RequestContext) error {
	if refreshToken != "" {
		err := e.refresh.Revoke(ctx, refreshToken, "", e.now())
		if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrAlreadyRevoked) {
			return fmt.Errorf("revoke on logout: %w", err)
		}
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("account lookup: %w", err)
	}

	e.clearBinding(ctx, account)
	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionInvalidated)
	e.record(ctx, store.EventLogout, account.ID, rc, nil)
	return nil
}

// ForceLogout terminates the active session for an identifier without
// authentication. It backs the device-conflict recovery flow, so it is
// budgeted per identifier+IP and answers identically whether or not the
// account exists.
func (e *Engine) ForceLogout(ctx context.Context, identifier string, rc RequestContext) error {
	if e.config.RateLimit.Enabled {
		key := "budget:forcelogout:" + hashBudgetKey(identifier, rc.IP)
		err := e.limiter.EnforceBudget(ctx, key, e.config.RateLimit.ForceLogoutMax, e.config.RateLimit.ForceLogoutWindow)
		if err := e.mapBudgetErr(err); err != nil {
			return err
		}
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("account lookup: %w", err)
	}

	if _, err := e.refresh.RevokeAllFor(ctx, account.ID, e.now()); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	e.clearBinding(ctx, account)
	e.metrics.Inc(MetricForceLogout)
	e.metrics.Inc(MetricSessionInvalidated)
	e.record(ctx, store.EventLogout, account.ID, rc, map[string]string{"forced": "true"})
	return nil
}

// NotePasswordResetRequest charges the reset-request budget for an IP. The
// mail flow lives in the host application; only the abuse budget is here.
func (e *Engine) NotePasswordResetRequest(ctx context.Context, identifier string, rc RequestContext) error {
	if e.config.RateLimit.Enabled {
		key := "budget:pwreset:" + rc.IP
		err := e.limiter.EnforceBudget(ctx, key, e.config.RateLimit.ResetRequestMax, e.config.RateLimit.ResetRequestWindow)
		if err := e.mapBudgetErr(err); err != nil {
			return err
		}
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("account lookup: %w", err)
	}
	e.metrics.Inc(MetricPasswordResetRequest)
	e.record(ctx, store.EventPasswordResetRequest, account.ID, rc, nil)
	return nil
}

// mapBudgetErr translates a budget check result. Store errors fail open, as
// in allowAttempt.
func (e *Engine) mapBudgetErr(err error) error {
	if err == nil {
		return nil
	}
	var le *rate.LimitError
	if errors.As(err, &le) {
		e.metrics.Inc(MetricRateLimitHit)
		return &RateLimitedError{
			Dimension:  string(le.Dimension),
			RetryAfter: le.RetryAfter,
		}
	}
	e.logger.Warn("budget check unavailable, allowing request", "error", err)
	return nil
}

// hashBudgetKey keys auxiliary budgets without storing the raw identifier.
func hashBudgetKey(identifier, ip string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(identifier) + "|" + ip))
	return hex.EncodeToString(sum[:])[:16]
}

// clearBinding drops the active device session. Best-effort: a lost update
// here is logged, the caller's operation still succeeded.
func (e *Engine) clearBinding(ctx context.Context, account *store.Account) {
	account.ActiveDeviceID = ""
	account.SessionCreatedAt = time.Time{}
	account.UpdatedAt = e.now()
	if err := e.accounts.Update(ctx, account); err != nil {
		e.logger.Error("device binding not cleared", "account_id", account.ID, "error", err)
	}
}

package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for wrong passwords and unknown
	// identifiers alike, so responses never reveal account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is in force.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountExists is returned when a registration identifier is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountDisabled is returned for inactive and suspended accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrWeakPassword is returned when a registration password misses the
	// strength floor.
	ErrWeakPassword = errors.New("password too weak")
	// ErrSessionExpired is returned when the device binding check fails.
	ErrSessionExpired = errors.New("session expired")
	// ErrTokenNotFound is returned when a refresh token does not exist for
	// the caller. Externally indistinguishable from a cross-account token.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenInactive is returned for revoked and expired refresh tokens.
	// Externally it never distinguishes the two.
	ErrTokenInactive = errors.New("refresh token expired or revoked")
	// ErrSignatureInvalid is returned when a signed artifact (the device
	// cookie) fails independent cryptographic verification.
	ErrSignatureInvalid = errors.New("signature verification failed")
	// ErrRateLimited is returned when any limiter dimension trips.
	ErrRateLimited = errors.New("too many attempts")
	// ErrCSRFTokenMissing is returned when a mutating request carries no
	// anti-forgery token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenInvalid is returned for unknown, expired, or
	// cross-account anti-forgery tokens.
	ErrCSRFTokenInvalid = errors.New("csrf token invalid")
	// ErrEngineNotReady is returned when the engine is used before Build
	// wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// SessionExpiredReason narrows a failed device-binding check for client
// messaging only; both reasons map to the same external status.
type SessionExpiredReason string

const (
	// ReasonMissingCookie means no device cookie accompanied the request.
	ReasonMissingCookie SessionExpiredReason = "missing_cookie"
	// ReasonDeviceMismatch means the cookie names a device that is no
	// longer the account's active one.
	ReasonDeviceMismatch SessionExpiredReason = "device_mismatch"
)

// SessionExpiredError carries the sub-reason of a device-binding failure.
// errors.Is(err, ErrSessionExpired) holds for every instance.
type SessionExpiredError struct {
	Reason SessionExpiredReason
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", e.Reason)
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// RateLimitedError names the tripped dimension and the retry horizon.
// errors.Is(err, ErrRateLimited) holds for every instance.
type RateLimitedError struct {
	Dimension  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts (%s), retry after %s", e.Dimension, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// LockedError carries the remaining lockout duration.
// errors.Is(err, ErrAccountLocked) holds for every instance.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

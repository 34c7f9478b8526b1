package authcore

import (
	"github.com/bizware/authcore/internal/rate"
	"github.com/bizware/authcore/store"
)

// RequestContext is the per-request network and device metadata, built once
// at the transport boundary and threaded through every component call.
// Immutable by convention.
type RequestContext struct {
	IP        string
	UserAgent string
	// DeviceID is the value of the verified device cookie, or the advisory
	// X-Device-Id header during login. Empty when neither is present.
	DeviceID string
}

// TokenPair is one access/refresh issuance.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login] and [Engine.Register].
type LoginResult struct {
	Account *store.Account
	Tokens  TokenPair
	// DeviceID is the fresh device binding; the transport writes it into
	// the signed cookie.
	DeviceID string
}

// AttackSignal is a derived, non-blocking detection record. It feeds
// monitoring, not direct blocking.
type AttackSignal struct {
	// Kind is "distributed_attack" or "credential_stuffing".
	Kind string
	// AccountKey is the hashed identifier; the raw email never leaves the
	// limiter.
	AccountKey string
	IP         string
	Count      int64
}

func signalFromRate(sig rate.Signal) AttackSignal {
	return AttackSignal{
		Kind:       string(sig.Kind),
		AccountKey: sig.AccountKey,
		IP:         sig.IP,
		Count:      sig.Count,
	}
}

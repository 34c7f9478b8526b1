package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("record already exists")
	// ErrAlreadyRevoked is returned by Revoke when the token reached a
	// terminal state first. Concurrent rotations race on this: exactly one
	// caller commits, every other caller observes ErrAlreadyRevoked.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")
)

// AccountStore is the account record boundary. Device-binding decisions read
// the account fresh through it on every request; implementations must not
// cache records per instance.
type AccountStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
}

// RefreshStore persists refresh tokens and their rotation chains.
type RefreshStore interface {
	// Get looks a token up by its opaque value.
	Get(ctx context.Context, token string) (*RefreshToken, error)
	// GetForAccount looks a token up scoped to one account, so a token value
	// can never be manipulated across account boundaries.
	GetForAccount(ctx context.Context, token, accountID string) (*RefreshToken, error)
	Create(ctx context.Context, t *RefreshToken) error
	// Revoke transitions the token to its terminal state, recording the
	// successor when the revocation is part of a rotation. The revoked flag
	// acts as a compare-and-swap gate: if the token is already revoked the
	// call fails with ErrAlreadyRevoked and writes nothing.
	Revoke(ctx context.Context, token, replacedBy string, at time.Time) error
	// RevokeAllFor revokes every live token of the account and reports how
	// many were affected. Idempotent.
	RevokeAllFor(ctx context.Context, accountID string, at time.Time) (int, error)
	// TouchLastUsed is best-effort bookkeeping; failures are not fatal.
	TouchLastUsed(ctx context.Context, token string, at time.Time) error
	// DeleteExpired expunges tokens whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// ActivityStore is the append-only activity log. There is deliberately no
// update or single-row delete: entries are immutable once written and leave
// only through retention expiry.
type ActivityStore interface {
	Append(ctx context.Context, e *ActivityEntry) error
	// ListForAccount returns the most recent entries for an account, newest
	// first, capped at limit.
	ListForAccount(ctx context.Context, accountID string, limit int) ([]*ActivityEntry, error)
	// DeleteBefore enforces the retention window.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

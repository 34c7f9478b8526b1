package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizware/authcore/store"
)

// SessionInfo is the read-only view of an account's device session state.
// Device ids never leave the engine; only the fact of a session does.
type SessionInfo struct {
	Active           bool
	SessionCreatedAt time.Time
	SessionCount     int
	LastLoginIP      string
	LastLoginAt      time.Time
}

// ActiveSession reports the account's current device session, if any.
func (e *Engine) ActiveSession(ctx context.Context, accountID string) (*SessionInfo, error) {
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	return &SessionInfo{
		Active:           account.ActiveDeviceID != "",
		SessionCreatedAt: account.SessionCreatedAt,
		SessionCount:     account.SessionCount,
		LastLoginIP:      account.LastLoginIP,
		LastLoginAt:      account.LastLoginAt,
	}, nil
}

// AttemptCount reports the identifier's current rate-limiter failure count.
// Zero for unknown identifiers; existence is not revealed.
func (e *Engine) AttemptCount(ctx context.Context, identifier string) (int64, error) {
	if !e.config.RateLimit.Enabled {
		return 0, nil
	}
	return e.limiter.Attempts(ctx, identifier)
}

// RecentActivity lists the newest activity entries for an account through
// the optional activity store.
func (e *Engine) RecentActivity(ctx context.Context, accountID string, limit int) ([]*store.ActivityEntry, error) {
	if e.activity == nil {
		return nil, nil
	}
	return e.activity.ListForAccount(ctx, accountID, limit)
}

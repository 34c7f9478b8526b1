// Package csrf issues and verifies per-account anti-forgery tokens.
package csrf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMissing is returned when no token accompanies the request.
	ErrMissing = errors.New("csrf token missing")
	// ErrInvalid covers unknown, expired, and cross-account tokens alike.
	ErrInvalid = errors.New("csrf token invalid")
)

const keyPrefix = "csrf:"

type localEntry struct {
	accountID string
	expiresAt time.Time
}

// Guard hands out random opaque tokens bound to one account. Tokens are
// reusable until expiry, not single-use. Tokens live in Redis so any server
// instance can verify them; a node-local map keeps verification working when
// Redis is unreachable.
type Guard struct {
	redis  redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local map[string]localEntry
	ops   int
}

// New creates a Guard. client may be nil, leaving only the in-process map.
func New(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Guard{
		redis:  client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		local:  make(map[string]localEntry),
	}
}

// SetClock overrides the guard clock. Test hook.
func (g *Guard) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Issue mints a token for the account.
func (g *Guard) Issue(ctx context.Context, accountID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	if g.redis != nil {
		if err := g.redis.Set(ctx, keyPrefix+token, accountID, g.ttl).Err(); err != nil {
			g.logger.Warn("csrf store unavailable, token held locally only", "error", err)
		}
	}

	g.mu.Lock()
	g.local[token] = localEntry{accountID: accountID, expiresAt: g.now().Add(g.ttl)}
	g.sweepLocked()
	g.mu.Unlock()

	return token, nil
}

// Verify checks that the token exists, has not expired, and belongs to the
// account. Missing tokens and bad tokens fail differently so the transport
// can answer with distinct messages; neither reveals more than that.
func (g *Guard) Verify(ctx context.Context, token, accountID string) error {
	if token == "" || accountID == "" {
		return ErrMissing
	}

	if g.redis != nil {
		owner, err := g.redis.Get(ctx, keyPrefix+token).Result()
		switch {
		case err == nil:
			if owner != accountID {
				return ErrInvalid
			}
			return nil
		case errors.Is(err, redis.Nil):
			return ErrInvalid
		default:
			g.logger.Warn("csrf store unavailable, verifying locally", "error", err)
		}
	}

	g.mu.Lock()
	entry, ok := g.local[token]
	g.mu.Unlock()

	if !ok || g.now().After(entry.expiresAt) || entry.accountID != accountID {
		return ErrInvalid
	}

	return nil
}

// sweepLocked drops expired local entries. Caller holds the lock.
func (g *Guard) sweepLocked() {
	g.ops++
	if g.ops%64 != 0 {
		return
	}
	now := g.now()
	for token, entry := range g.local {
		if now.After(entry.expiresAt) {
			delete(g.local, token)
		}
	}
}

package csrf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisGuard(t *testing.T, ttl time.Duration) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, ttl, nil), mr
}

func TestIssueAndVerify(t *testing.T) {
	g, _ := newRedisGuard(t, time.Hour)
	ctx := context.Background()

	token, err := g.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}

	if err := g.Verify(ctx, token, "acc-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Reusable until expiry.
	if err := g.Verify(ctx, token, "acc-1"); err != nil {
		t.Fatalf("second verify: %v", err)
	}
}

func TestVerifyRejectsCrossAccount(t *testing.T) {
	g, _ := newRedisGuard(t, time.Hour)
	ctx := context.Background()

	token, err := g.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := g.Verify(ctx, token, "acc-2"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for cross-account token, got %v", err)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	g, _ := newRedisGuard(t, time.Hour)

	if err := g.Verify(context.Background(), "", "acc-1"); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	g, _ := newRedisGuard(t, time.Hour)

	err := g.Verify(context.Background(), "deadbeef", "acc-1")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown token, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	g, mr := newRedisGuard(t, time.Hour)
	ctx := context.Background()

	token, err := g.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if err := g.Verify(ctx, token, "acc-1"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after expiry, got %v", err)
	}
}

func TestLocalFallbackWithoutRedis(t *testing.T) {
	g := New(nil, time.Hour, nil)
	ctx := context.Background()

	now := time.Now()
	g.SetClock(func() time.Time { return now })

	token, err := g.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := g.Verify(ctx, token, "acc-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := g.Verify(ctx, token, "acc-1"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after local expiry, got %v", err)
	}
}

func TestVerifySurvivesRedisOutage(t *testing.T) {
	g, mr := newRedisGuard(t, time.Hour)
	ctx := context.Background()

	token, err := g.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.Close()

	// Redis is gone; the node-local copy still answers.
	if err := g.Verify(ctx, token, "acc-1"); err != nil {
		t.Fatalf("expected local verification during outage, got %v", err)
	}
}

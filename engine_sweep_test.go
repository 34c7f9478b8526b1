package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizware/authcore/store"
)

func TestSweepExpungesExpiredTokens(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	// Past the refresh TTL the token is expired but still stored.
	future := time.Now().Add(8 * 24 * time.Hour)
	env.engine.now = func() time.Time { return future }
	if _, err := env.refresh.Get(ctx, reg.Tokens.RefreshToken); err != nil {
		t.Fatalf("expired token should still be stored, got %v", err)
	}

	env.engine.Sweep(ctx)

	if _, err := env.refresh.Get(ctx, reg.Tokens.RefreshToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected expired token expunged, got %v", err)
	}
}

func TestSweepHonorsActivityRetention(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Audit.Retention = 90 * 24 * time.Hour
	env := newTestEngine(t, cfg)
	ctx := context.Background()

	now := time.Now()
	_ = env.activity.Append(ctx, &store.ActivityEntry{
		AccountID: "acct-1", Event: store.EventLogin, Timestamp: now.Add(-91 * 24 * time.Hour),
	})
	_ = env.activity.Append(ctx, &store.ActivityEntry{
		AccountID: "acct-1", Event: store.EventLogin, Timestamp: now,
	})

	env.engine.Sweep(ctx)

	entries, err := env.activity.ListForAccount(ctx, "acct-1", 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the in-retention entry to survive, got %d", len(entries))
	}
	if !entries[0].Timestamp.Equal(now) {
		t.Fatal("wrong entry pruned")
	}
}

func TestSweepDisabledRetentionKeepsActivity(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Audit.Retention = -1
	env := newTestEngine(t, cfg)
	ctx := context.Background()

	_ = env.activity.Append(ctx, &store.ActivityEntry{
		AccountID: "acct-1", Event: store.EventLogin, Timestamp: time.Now().Add(-400 * 24 * time.Hour),
	})

	env.engine.Sweep(ctx)

	entries, err := env.activity.ListForAccount(ctx, "acct-1", 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatal("retention off must never prune")
	}
}

func TestSweepLoopRunsAndStopsOnClose(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	env := newTestEngine(t, cfg)
	ctx := context.Background()

	expired := &store.RefreshToken{
		AccountID: "acct-1",
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	if err := env.refresh.Create(ctx, expired); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := env.refresh.Get(ctx, "stale-token"); errors.Is(err, store.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background sweep never expunged the expired token")
		}
		time.Sleep(2 * time.Millisecond)
	}

	// Close stops the loop and is safe to call again via t.Cleanup.
	env.engine.Close()
}

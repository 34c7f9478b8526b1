package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizware/authcore/store"
)

func TestRefreshRotation(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")
	rc := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}

	pair2, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rc)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if pair2.RefreshToken == reg.Tokens.RefreshToken {
		t.Fatal("rotation must mint a new refresh token")
	}
	if pair2.AccessToken == "" {
		t.Fatal("rotation must mint a new access token")
	}

	// The retired token carries a forward pointer to its successor.
	old, err := env.refresh.Get(ctx, reg.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("load old token: %v", err)
	}
	if !old.Revoked {
		t.Fatal("old token must be revoked after rotation")
	}
	if old.ReplacedBy != pair2.RefreshToken {
		t.Fatal("old token must point at its successor")
	}
}

func TestRefreshChainSurvivesMultipleRotations(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")
	rc := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}

	current := reg.Tokens.RefreshToken
	for i := 0; i < 3; i++ {
		pair, err := env.engine.Refresh(ctx, current, reg.DeviceID, rc)
		if err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		current = pair.RefreshToken
	}
}

func TestRefreshUpdatesLastSeenBookkeeping(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	later := time.Now().Add(2 * time.Hour)
	env.engine.now = func() time.Time { return later }

	rc := RequestContext{IP: "198.51.100.7", UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}
	if _, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rc); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// The consumed token records when the rotation used it.
	old, err := env.refresh.Get(ctx, reg.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("load old token: %v", err)
	}
	if !old.LastUsedAt.Equal(later) {
		t.Fatalf("expected LastUsedAt %v, got %v", later, old.LastUsedAt)
	}

	// The account's last-seen fields move with the rotation.
	account, err := env.accounts.GetByID(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !account.LastLoginAt.Equal(later) {
		t.Fatalf("expected LastLoginAt %v, got %v", later, account.LastLoginAt)
	}
	if !account.UpdatedAt.Equal(later) {
		t.Fatalf("expected UpdatedAt %v, got %v", later, account.UpdatedAt)
	}
	if account.LastLoginIP != "198.51.100.7" {
		t.Fatalf("expected LastLoginIP recorded, got %q", account.LastLoginIP)
	}
}

func TestRefreshReplayRevokesAllSessions(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")
	rc := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}

	pair2, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rc)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Replaying the retired token is treated as theft.
	if _, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rc); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("expected ErrTokenInactive on replay, got %v", err)
	}

	// The successor died with it.
	if _, err := env.engine.Refresh(ctx, pair2.RefreshToken, reg.DeviceID, rc); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("expected successor revoked after replay, got %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	_, err := env.engine.Refresh(context.Background(), "no-such-token", "", testRC())
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	future := time.Now().Add(8 * 24 * time.Hour)
	env.engine.now = func() time.Time { return future }

	rc := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}
	if _, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rc); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("expected ErrTokenInactive for expired token, got %v", err)
	}
}

func TestRefreshDeviceMismatchKillsToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")
	rc := testRC()

	_, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, "some-other-device", rc)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired on device mismatch, got %v", err)
	}

	// The presented token was retired in the process.
	rt, loadErr := env.refresh.Get(ctx, reg.Tokens.RefreshToken)
	if loadErr != nil {
		t.Fatalf("load token: %v", loadErr)
	}
	if !rt.Revoked {
		t.Fatal("token presented with wrong device binding must be revoked")
	}
}

func TestRevokeScopedToAccount(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	alice := mustRegister(t, env, "alice@example.com", "Str0ng!pass")
	bob := mustRegister(t, env, "bob@example.com", "Str0ng!pass")

	// Bob cannot revoke Alice's token, and learns nothing trying.
	err := env.engine.Revoke(ctx, alice.Tokens.RefreshToken, bob.Account.ID)
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for cross-account revoke, got %v", err)
	}

	if err := env.engine.Revoke(ctx, alice.Tokens.RefreshToken, alice.Account.ID); err != nil {
		t.Fatalf("owner revoke failed: %v", err)
	}
	// Idempotent.
	if err := env.engine.Revoke(ctx, alice.Tokens.RefreshToken, alice.Account.ID); err != nil {
		t.Fatalf("second revoke should succeed, got %v", err)
	}
}

func TestRevokeAllClearsSessions(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")
	rc := testRC()

	if err := env.engine.RevokeAll(ctx, reg.Account.ID, rc); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	account, err := env.accounts.GetByID(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.ActiveDeviceID != "" {
		t.Fatal("device binding must be cleared")
	}

	rcDev := RequestContext{IP: rc.IP, UserAgent: rc.UserAgent, DeviceID: reg.DeviceID}
	if _, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rcDev); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("expected refresh token dead after revoke all, got %v", err)
	}

	env.engine.Close()
	entries, err := env.activity.ListForAccount(ctx, reg.Account.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	var found bool
	for _, e := range entries {
		if e.Event == store.EventLogoutAll {
			found = true
		}
	}
	if !found {
		t.Fatal("expected LOGOUT_ALL activity entry")
	}
}

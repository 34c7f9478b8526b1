package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/bizware/authcore/store"
)

func TestAuthenticateHappyPath(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	account, err := env.engine.Authenticate(ctx, reg.Tokens.AccessToken, reg.DeviceID, testRC())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if account.ID != reg.Account.ID {
		t.Fatalf("expected account %s, got %s", reg.Account.ID, account.ID)
	}
}

func TestAuthenticateMissingCookie(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	_, err := env.engine.Authenticate(context.Background(), reg.Tokens.AccessToken, "", testRC())
	var se *SessionExpiredError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionExpiredError, got %v", err)
	}
	if se.Reason != ReasonMissingCookie {
		t.Fatalf("expected missing_cookie reason, got %s", se.Reason)
	}
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatal("SessionExpiredError must match ErrSessionExpired")
	}
}

func TestSecondLoginDisplacesFirstDevice(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	first := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	second, err := env.engine.Login(ctx, "owner@example.com", "Str0ng!pass", RequestContext{IP: "203.0.113.7", UserAgent: "ua-v2"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	// Device A's access token is still cryptographically valid, but its
	// binding is gone.
	_, err = env.engine.Authenticate(ctx, first.Tokens.AccessToken, first.DeviceID, testRC())
	var se *SessionExpiredError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionExpiredError for displaced device, got %v", err)
	}
	if se.Reason != ReasonDeviceMismatch {
		t.Fatalf("expected device_mismatch reason, got %s", se.Reason)
	}

	// Device B works.
	if _, err := env.engine.Authenticate(ctx, second.Tokens.AccessToken, second.DeviceID, testRC()); err != nil {
		t.Fatalf("authenticate on new device: %v", err)
	}

	// Device A's refresh token dies on first use.
	rcA := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: first.DeviceID}
	if _, err := env.engine.Refresh(ctx, first.Tokens.RefreshToken, first.DeviceID, rcA); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected displaced refresh to fail with ErrSessionExpired, got %v", err)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	if _, err := env.engine.Authenticate(context.Background(), "not-a-jwt", "dev", testRC()); err == nil {
		t.Fatal("expected error for malformed access token")
	}
}

func TestLogoutClearsBindingAndToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	if err := env.engine.Logout(ctx, reg.Account.ID, reg.Tokens.RefreshToken, testRC()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	account, err := env.accounts.GetByID(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.ActiveDeviceID != "" {
		t.Fatal("logout must clear the device binding")
	}

	rt, err := env.refresh.Get(ctx, reg.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("load token: %v", err)
	}
	if !rt.Revoked {
		t.Fatal("logout must revoke the presented refresh token")
	}

	// Idempotent: a second logout is fine.
	if err := env.engine.Logout(ctx, reg.Account.ID, reg.Tokens.RefreshToken, testRC()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestForceLogoutTerminatesSession(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	if err := env.engine.ForceLogout(ctx, "owner@example.com", testRC()); err != nil {
		t.Fatalf("force logout: %v", err)
	}

	account, err := env.accounts.GetByID(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.ActiveDeviceID != "" {
		t.Fatal("force logout must clear the device binding")
	}

	rcDev := RequestContext{IP: testRC().IP, UserAgent: testRC().UserAgent, DeviceID: reg.DeviceID}
	if _, err := env.engine.Refresh(ctx, reg.Tokens.RefreshToken, reg.DeviceID, rcDev); err == nil {
		t.Fatal("expected refresh token dead after force logout")
	}
}

func TestForceLogoutUnknownIdentifierSilent(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	if err := env.engine.ForceLogout(context.Background(), "ghost@example.com", testRC()); err != nil {
		t.Fatalf("force logout must not reveal account existence, got %v", err)
	}
}

func TestForceLogoutBudget(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	for i := 0; i < 5; i++ {
		if err := env.engine.ForceLogout(ctx, "owner@example.com", testRC()); err != nil {
			t.Fatalf("call %d unexpectedly limited: %v", i, err)
		}
	}

	err := env.engine.ForceLogout(ctx, "owner@example.com", testRC())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th call, got %v", err)
	}
}

func TestPasswordResetRequestBudget(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	for i := 0; i < 3; i++ {
		if err := env.engine.NotePasswordResetRequest(ctx, "owner@example.com", testRC()); err != nil {
			t.Fatalf("request %d unexpectedly limited: %v", i, err)
		}
	}

	err := env.engine.NotePasswordResetRequest(ctx, "owner@example.com", testRC())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 4th request, got %v", err)
	}

	env.engine.Close()
	entries, err := env.activity.ListForAccount(ctx, reg.Account.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	n := 0
	for _, e := range entries {
		if e.Event == store.EventPasswordResetRequest {
			n++
		}
	}
	if n != 3 {
		t.Fatalf("expected 3 reset-request entries, got %d", n)
	}
}

func TestActiveSessionIntrospection(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	info, err := env.engine.ActiveSession(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if !info.Active {
		t.Fatal("expected an active session after registration")
	}
	if info.SessionCount != 1 {
		t.Fatalf("expected session count 1, got %d", info.SessionCount)
	}

	if err := env.engine.RevokeAll(ctx, reg.Account.ID, testRC()); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	info, err = env.engine.ActiveSession(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if info.Active {
		t.Fatal("expected no active session after revoke all")
	}
}

package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestCSRFIssueAndVerify(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	reg := mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	token, err := env.engine.IssueCSRF(ctx, reg.Account.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := env.engine.VerifyCSRF(ctx, token, reg.Account.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Reusable until expiry.
	if err := env.engine.VerifyCSRF(ctx, token, reg.Account.ID); err != nil {
		t.Fatalf("second verify: %v", err)
	}
}

func TestCSRFMissingToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	err := env.engine.VerifyCSRF(context.Background(), "", "acc-1")
	if !errors.Is(err, ErrCSRFTokenMissing) {
		t.Fatalf("expected ErrCSRFTokenMissing, got %v", err)
	}
}

func TestCSRFCrossAccountToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	alice := mustRegister(t, env, "alice@example.com", "Str0ng!pass")
	bob := mustRegister(t, env, "bob@example.com", "Str0ng!pass")

	token, err := env.engine.IssueCSRF(ctx, alice.Account.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := env.engine.VerifyCSRF(ctx, token, bob.Account.ID); !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected ErrCSRFTokenInvalid for cross-account token, got %v", err)
	}
}

func TestCSRFUnknownToken(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())

	err := env.engine.VerifyCSRF(context.Background(), "deadbeef", "acc-1")
	if !errors.Is(err, ErrCSRFTokenInvalid) {
		t.Fatalf("expected ErrCSRFTokenInvalid, got %v", err)
	}
}

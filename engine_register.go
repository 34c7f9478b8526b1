package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizware/authcore/password"
	"github.com/bizware/authcore/store"
)

// Register creates an account and logs it straight in: the response carries
// the first token pair and device binding. Identifiers are lowercased before
// storage so lookups stay case-insensitive.
func (e *Engine) Register(ctx context.Context, identifier, secret, name string, rc RequestContext) (*LoginResult, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, ErrInvalidCredentials
	}

	if err := password.CheckStrength(secret); err != nil {
		return nil, ErrWeakPassword
	}

	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := e.now()
	account := &store.Account{
		Identifier:   identifier,
		Name:         name,
		PasswordHash: hash,
		Status:       store.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			e.metrics.Inc(MetricRegistrationDuplicate)
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return e.establishSession(ctx, account, store.EventRegistration, rc)
}

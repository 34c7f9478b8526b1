package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizware/authcore/internal/csrf"
)

// IssueCSRF mints an anti-forgery token bound to the account. Tokens are
// reusable until expiry.
func (e *Engine) IssueCSRF(ctx context.Context, accountID string) (string, error) {
	token, err := e.csrf.Issue(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("issue csrf token: %w", err)
	}
	return token, nil
}

// VerifyCSRF checks an anti-forgery token against the account it was issued
// for. Method bypass for safe verbs belongs to the transport, not here.
func (e *Engine) VerifyCSRF(ctx context.Context, token, accountID string) error {
	err := e.csrf.Verify(ctx, token, accountID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, csrf.ErrMissing):
		e.metrics.Inc(MetricCSRFRejected)
		return ErrCSRFTokenMissing
	default:
		e.metrics.Inc(MetricCSRFRejected)
		return ErrCSRFTokenInvalid
	}
}

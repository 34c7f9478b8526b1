package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bizware/authcore"
	"github.com/bizware/authcore/jwt"
)

// fail maps engine errors onto HTTP responses. Bodies stay generic: the
// mapping never distinguishes expired-from-never-existed or reveals account
// existence, and internal errors surface as an opaque 500.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var rle *authcore.RateLimitedError
	if errors.As(err, &rle) {
		c.Set(fiber.HeaderRetryAfter, formatSeconds(rle.RetryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "too many attempts, please try again later",
			"retryAfter": int(rle.RetryAfter.Seconds()),
		})
	}

	var le *authcore.LockedError
	if errors.As(err, &le) {
		c.Set(fiber.HeaderRetryAfter, formatSeconds(le.RetryAfter))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":      "account temporarily locked",
			"retryAfter": int(le.RetryAfter.Seconds()),
		})
	}

	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return unauthorized(c, "invalid credentials")
	case errors.Is(err, authcore.ErrSessionExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "session expired, please log in again",
			"code":  "SESSION_EXPIRED",
		})
	case errors.Is(err, jwt.ErrTokenInvalid):
		return unauthorized(c, "invalid or expired access token")
	case errors.Is(err, authcore.ErrTokenInactive):
		return unauthorized(c, "invalid or expired refresh token")
	case errors.Is(err, authcore.ErrTokenNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "refresh token not found",
		})
	case errors.Is(err, authcore.ErrAccountDisabled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "account disabled",
		})
	case errors.Is(err, authcore.ErrAccountExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "account already exists",
		})
	case errors.Is(err, authcore.ErrWeakPassword):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "password must be at least 8 characters with upper, lower, digit and symbol",
		})
	case errors.Is(err, authcore.ErrCSRFTokenMissing):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "csrf token missing",
		})
	case errors.Is(err, authcore.ErrCSRFTokenInvalid):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "csrf token invalid",
		})
	case errors.Is(err, authcore.ErrSignatureInvalid):
		return unauthorized(c, "invalid session cookie")
	}

	h.logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
}

// formatSeconds renders a Retry-After header value, rounding up so clients
// never retry inside the window.
func formatSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

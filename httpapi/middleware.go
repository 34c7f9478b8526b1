package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bizware/authcore/store"
)

const accountLocal = "authcore.account"

// VerifyDeviceCookie rejects any request carrying a device cookie that fails
// MAC verification, before the engine sees it. A tampered cookie is a
// signature failure, not an absent cookie: degrading it to missing would
// hide the tampering and, on refresh, retire the presented token over what
// may be transport corruption. The bad cookie is cleared so the client can
// recover by logging in again.
func (h *Handler) VerifyDeviceCookie(c *fiber.Ctx) error {
	if raw := c.Cookies(h.cookie.Name); raw != "" {
		if _, err := h.codec.Verify(raw); err != nil {
			h.clearDeviceCookie(c)
			return h.fail(c, err)
		}
	}
	return c.Next()
}

// RequireAuth verifies the bearer access token and revalidates the device
// binding on every request, so a displaced session is rejected even while
// its access token is still within TTL.
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return unauthorized(c, "missing access token")
	}

	rc := h.requestContext(c)
	account, err := h.engine.Authenticate(c.Context(), token, h.deviceFromCookie(c), rc)
	if err != nil {
		return h.fail(c, err)
	}

	c.Locals(accountLocal, account)
	return c.Next()
}

// RequireCSRF enforces the anti-forgery token on state-changing verbs.
// Safe verbs pass through untouched.
func (h *Handler) RequireCSRF(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return c.Next()
	}

	account := accountFrom(c)
	if account == nil {
		return unauthorized(c, "missing access token")
	}

	if err := h.engine.VerifyCSRF(c.Context(), c.Get(csrfHeader), account.ID); err != nil {
		return h.fail(c, err)
	}
	return c.Next()
}

// accountFrom reads the authenticated account set by RequireAuth. Nil when
// the middleware did not run.
func accountFrom(c *fiber.Ctx) *store.Account {
	account, _ := c.Locals(accountLocal).(*store.Account)
	return account
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

// Package httpapi exposes the authentication engine over HTTP with Fiber.
// It owns everything transport-shaped: the signed device cookie, the CSRF
// header, bearer-token extraction, and the error-to-status mapping. The
// engine itself never sees a request object.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bizware/authcore"
)

const (
	csrfHeader   = "X-CSRF-Token"
	deviceHeader = "X-Device-Id"
)

type Handler struct {
	engine *authcore.Engine
	codec  *cookieCodec
	cookie authcore.CookieConfig
	logger *slog.Logger
}

func NewHandler(engine *authcore.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cookie := engine.CookieSettings()
	return &Handler{
		engine: engine,
		codec:  newCookieCodec(cookie.SigningSecret),
		cookie: cookie,
		logger: logger,
	}
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	v1 := app.Group("/api/v1", h.VerifyDeviceCookie)

	v1.Post("/register", h.Register)
	v1.Post("/login", h.Login)
	v1.Post("/refresh", h.Refresh)
	v1.Post("/force-logout", h.ForceLogout)
	v1.Post("/password-reset-request", h.PasswordResetRequest)

	authed := v1.Group("/", h.RequireAuth)
	authed.Get("/csrf-token", h.CSRFToken)
	authed.Get("/session", h.Session)

	mutating := authed.Group("/", h.RequireCSRF)
	mutating.Post("/logout", h.Logout)
	mutating.Post("/revoke", h.Revoke)
	mutating.Post("/revoke-all", h.RevokeAll)
}

// requestContext collects the per-request metadata the engine wants. The
// device id comes from the signed cookie when present and valid; during
// login, before any cookie exists, the advisory X-Device-Id header feeds the
// device rate-limit dimension.
func (h *Handler) requestContext(c *fiber.Ctx) authcore.RequestContext {
	rc := authcore.RequestContext{
		IP:        c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
	}
	if raw := c.Cookies(h.cookie.Name); raw != "" {
		if deviceID, err := h.codec.Verify(raw); err == nil {
			rc.DeviceID = deviceID
		}
	}
	if rc.DeviceID == "" {
		rc.DeviceID = c.Get(deviceHeader)
	}
	return rc
}

// deviceFromCookie returns the verified cookie device id only; the advisory
// header never satisfies a binding check. [Handler.VerifyDeviceCookie] has
// already rejected tampered cookies by the time a route handler runs, so a
// verification failure here only means the cookie vanished mid-request.
func (h *Handler) deviceFromCookie(c *fiber.Ctx) string {
	raw := c.Cookies(h.cookie.Name)
	if raw == "" {
		return ""
	}
	deviceID, err := h.codec.Verify(raw)
	if err != nil {
		return ""
	}
	return deviceID
}

func (h *Handler) setDeviceCookie(c *fiber.Ctx, deviceID string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    h.codec.Sign(deviceID),
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *Handler) clearDeviceCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

type identifierInput struct {
	Email string `json:"email"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var input credentialsInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c)
	}

	result, err := h.engine.Register(c.Context(), input.Email, input.Password, input.Name, h.requestContext(c))
	if err != nil {
		return h.fail(c, err)
	}

	h.setDeviceCookie(c, result.DeviceID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
		"account": fiber.Map{
			"id":    result.Account.ID,
			"email": result.Account.Identifier,
			"name":  result.Account.Name,
		},
	})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var input credentialsInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c)
	}

	result, err := h.engine.Login(c.Context(), input.Email, input.Password, h.requestContext(c))
	if err != nil {
		return h.fail(c, err)
	}

	h.setDeviceCookie(c, result.DeviceID)
	return c.JSON(fiber.Map{
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
		"account": fiber.Map{
			"id":    result.Account.ID,
			"email": result.Account.Identifier,
			"name":  result.Account.Name,
		},
	})
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil || input.RefreshToken == "" {
		return badRequest(c)
	}

	tokens, err := h.engine.Refresh(c.Context(), input.RefreshToken, h.deviceFromCookie(c), h.requestContext(c))
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var input refreshInput
	_ = c.BodyParser(&input)

	account := accountFrom(c)
	if err := h.engine.Logout(c.Context(), account.ID, input.RefreshToken, h.requestContext(c)); err != nil {
		return h.fail(c, err)
	}

	h.clearDeviceCookie(c)
	return c.JSON(fiber.Map{"message": "logged out"})
}

func (h *Handler) Revoke(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil || input.RefreshToken == "" {
		return badRequest(c)
	}

	account := accountFrom(c)
	if err := h.engine.Revoke(c.Context(), input.RefreshToken, account.ID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "token revoked"})
}

func (h *Handler) RevokeAll(c *fiber.Ctx) error {
	account := accountFrom(c)
	if err := h.engine.RevokeAll(c.Context(), account.ID, h.requestContext(c)); err != nil {
		return h.fail(c, err)
	}

	h.clearDeviceCookie(c)
	return c.JSON(fiber.Map{"message": "all sessions revoked"})
}

// ForceLogout is public and generically worded: it answers the same whether
// or not the account exists.
func (h *Handler) ForceLogout(c *fiber.Ctx) error {
	var input identifierInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" {
		return badRequest(c)
	}

	if err := h.engine.ForceLogout(c.Context(), input.Email, h.requestContext(c)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "if the account exists, its session has been terminated"})
}

func (h *Handler) PasswordResetRequest(c *fiber.Ctx) error {
	var input identifierInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" {
		return badRequest(c)
	}

	if err := h.engine.NotePasswordResetRequest(c.Context(), input.Email, h.requestContext(c)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "if the account exists, a reset email has been sent"})
}

func (h *Handler) CSRFToken(c *fiber.Ctx) error {
	account := accountFrom(c)
	token, err := h.engine.IssueCSRF(c.Context(), account.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"csrfToken": token})
}

func (h *Handler) Session(c *fiber.Ctx) error {
	account := accountFrom(c)
	info, err := h.engine.ActiveSession(c.Context(), account.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"active":           info.Active,
		"sessionCreatedAt": info.SessionCreatedAt,
		"sessionCount":     info.SessionCount,
		"lastLoginIp":      info.LastLoginIP,
		"lastLoginAt":      info.LastLoginAt,
	})
}

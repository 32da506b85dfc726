package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/verdantlabs/chat-admin/internal/app"
	"github.com/verdantlabs/chat-admin/internal/auth"
	"github.com/verdantlabs/chat-admin/internal/config"
	"github.com/verdantlabs/chat-admin/internal/httpserver/httputil"
	"github.com/verdantlabs/chat-admin/internal/limits"
	"github.com/verdantlabs/chat-admin/internal/store"
)

func registerAuthRoutes(router fiber.Router, container *app.Container) {
	handler := &authHandler{
		authService:  container.AdminAuth,
		loginLimiter: container.LoginLimiter,
		session:      container.Config.Session,
	}

	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Get("/me", authMiddleware(container), handler.me)
}

type authHandler struct {
	authService  *auth.Service
	loginLimiter *limits.LoginLimiter
	session      config.SessionConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             userResponse `json:"user"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func buildUserResponse(user store.User) userResponse {
	resp := userResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
	if user.LastLoginAt.Valid {
		t := user.LastLoginAt.Time
		resp.LastLoginAt = &t
	}
	return resp
}

func (h *authHandler) login(c *fiber.Ctx) error {
	if err := h.loginLimiter.Allow(userContext(c), c.IP()); err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "too many login attempts")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	pair, user, err := h.authService.AuthenticateLocal(userContext(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid credentials")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	h.setSessionCookie(c, pair)
	return c.JSON(buildTokenResponse(pair, user))
}

func (h *authHandler) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "refresh_token required")
	}

	pair, user, err := h.authService.Refresh(userContext(c), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid refresh token")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	h.setSessionCookie(c, pair)
	return c.JSON(buildTokenResponse(pair, user))
}

func (h *authHandler) logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *authHandler) me(c *fiber.Ctx) error {
	user, ok := sessionUserFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization required")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    buildUserResponse(user),
	})
}

func (h *authHandler) setSessionCookie(c *fiber.Ctx, pair *auth.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     h.session.CookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HTTPOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func buildTokenResponse(pair *auth.TokenPair, user store.User) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             buildUserResponse(user),
	}
}

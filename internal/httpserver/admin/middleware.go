package admin

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/verdantlabs/chat-admin/internal/app"
	"github.com/verdantlabs/chat-admin/internal/httpserver/httputil"
	"github.com/verdantlabs/chat-admin/internal/store"
)

type adminContextKey string

const (
	authHeaderPrefix  = "bearer "
	contextUserKey    = adminContextKey("chat-admin/session-user")
	authorizationName = "Authorization"
	loginPagePath     = "/login"
	dashboardHomePath = "/"
)

// sessionToken extracts the access token from the Authorization header or,
// failing that, the session cookie.
func sessionToken(c *fiber.Ctx, container *app.Container) string {
	raw := strings.TrimSpace(c.Get(authorizationName))
	if raw != "" && strings.HasPrefix(strings.ToLower(raw), authHeaderPrefix) {
		if token := strings.TrimSpace(raw[len(authHeaderPrefix):]); token != "" {
			return token
		}
	}
	return strings.TrimSpace(c.Cookies(container.Config.Session.CookieName))
}

// authMiddleware resolves the session token to a user and stores it in the
// request context. Requests without a valid session get a 401 JSON error.
func authMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c, container)
		if token == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization required")
		}

		user, err := container.AdminAuth.AuthorizeAccessToken(userContext(c), token)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired token")
		}

		ctx := context.WithValue(userContext(c), contextUserKey, user)
		c.SetUserContext(ctx)
		c.Locals("sessionUserID", user.ID.String())
		return c.Next()
	}
}

// requireAdmin rejects authenticated non-admin users with 403.
func requireAdmin(c *fiber.Ctx) error {
	user, ok := sessionUserFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization required")
	}
	if !user.IsAdmin() {
		return httputil.WriteError(c, fiber.StatusForbidden, "admin role required")
	}
	return c.Next()
}

// PageGuard protects the dashboard page with redirects instead of JSON
// errors: no session sends the browser to the login page, a valid non-admin
// session back to the app home.
func PageGuard(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c, container)
		if token == "" {
			return c.Redirect(loginPagePath, fiber.StatusFound)
		}

		user, err := container.AdminAuth.AuthorizeAccessToken(userContext(c), token)
		if err != nil {
			return c.Redirect(loginPagePath, fiber.StatusFound)
		}
		if !user.IsAdmin() {
			return c.Redirect(dashboardHomePath, fiber.StatusFound)
		}

		ctx := context.WithValue(userContext(c), contextUserKey, user)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func sessionUserFromContext(ctx context.Context) (store.User, bool) {
	if ctx == nil {
		return store.User{}, false
	}
	val := ctx.Value(contextUserKey)
	if val == nil {
		return store.User{}, false
	}
	user, ok := val.(store.User)
	return user, ok
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

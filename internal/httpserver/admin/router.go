package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/verdantlabs/chat-admin/internal/app"
)

// Register wires up all /admin routes: the auth endpoints, the protected
// JSON API, and the dashboard page guard.
func Register(router *fiber.App, container *app.Container) {
	authGroup := router.Group("/admin/auth")
	registerAuthRoutes(authGroup, container)

	api := router.Group("/admin/api", authMiddleware(container), requireAdmin)
	registerStatsRoutes(api, container)
	registerLimitRoutes(api, container)
}

package httpserver

import (
	"embed"
	"io/fs"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	fiberfs "github.com/gofiber/fiber/v2/middleware/filesystem"

	"github.com/verdantlabs/chat-admin/internal/app"
	adminroutes "github.com/verdantlabs/chat-admin/internal/httpserver/admin"
)

// uiDist contains the compiled dashboard assets.
//
//go:embed ui/dist
var uiDist embed.FS

const uiDistRoot = "ui/dist"

func embeddedUI() (fs.FS, error) {
	return fs.Sub(uiDist, uiDistRoot)
}

// mountDashboard serves the admin dashboard page behind the page guard:
// visitors without a session are redirected to /login, signed-in non-admins
// back to the app home.
func mountDashboard(fiberApp *fiber.App, container *app.Container) {
	dist, err := embeddedUI()
	if err != nil {
		log.Printf("ui assets not embedded: %v", err)
		return
	}

	fiberApp.Get("/admin", adminroutes.PageGuard(container), func(c *fiber.Ctx) error {
		data, err := fs.ReadFile(dist, "dashboard.html")
		if err != nil {
			return fiber.ErrNotFound
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(data)
	})
}

func mountEmbeddedUI(fiberApp *fiber.App) {
	dist, err := embeddedUI()
	if err != nil {
		log.Printf("ui assets not embedded: %v", err)
		return
	}

	fiberApp.Get("/login", func(c *fiber.Ctx) error {
		data, err := fs.ReadFile(dist, "login.html")
		if err != nil {
			return fiber.ErrNotFound
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(data)
	})

	fiberApp.Use("/", fiberfs.New(fiberfs.Config{
		Root:         http.FS(dist),
		PathPrefix:   "",
		Index:        "index.html",
		NotFoundFile: "index.html",
		Browse:       false,
	}))
}

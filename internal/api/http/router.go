package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/authguard/internal/api/http/handlers"
	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Principals     *handlers.PrincipalsHandler
	Resources      *handlers.ResourcesHandler
	AuthMiddleware *auth.Middleware
}

// NewApp builds the fiber app serving the API. Immutable copies request values out of
// fasthttp's reused buffers, so strings taken from params and bodies stay valid after the
// handler returns.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		Immutable:             true,
		DisableStartupMessage: true,
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	mw := cfg.AuthMiddleware

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/password/change", mw.Authenticate(), cfg.Auth.ChangePassword)

	app.Get("/profile", mw.Authenticate(), cfg.Auth.Profile)
	app.Get("/reports", mw.RequireRoles(domain.RoleAdmin, domain.RoleManager), cfg.Resources.Reports)

	admin := app.Group("/admin", mw.Authenticate(), mw.Authorize(domain.RoleAdmin))
	admin.Get("/", cfg.Resources.Admin)
	admin.Post("/principals", cfg.Principals.Create)
	admin.Put("/principals/:identity/role", cfg.Principals.ChangeRole)
}

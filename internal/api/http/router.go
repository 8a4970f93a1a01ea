package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/session-gate/internal/api/http/handlers"
	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Admin     *handlers.AdminHandler
	Protected *handlers.ProtectedHandler
	Gate      *auth.Gate
	Sessions  *auth.SessionRefresher
	LoginRate *RateLimiter
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	if cfg.Sessions != nil {
		app.Use(cfg.Sessions.Handle)
	}
	gate := cfg.Gate

	authGroup := app.Group("/auth")
	signIn := []fiber.Handler{}
	if cfg.LoginRate != nil {
		signIn = append(signIn, cfg.LoginRate.Handle)
	}
	authGroup.Post("/register", append(signIn, cfg.Auth.Register)...)
	authGroup.Post("/login", append(signIn, cfg.Auth.Login)...)
	authGroup.Post("/federated", append(signIn, cfg.Auth.Federated)...)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", gate.RequireAuthenticated()(cfg.Auth.Session))
	authGroup.Post("/force-refresh", gate.RequireAuthenticated()(cfg.Auth.ForceRefresh))

	admin := app.Group("/admin")
	requireAdmin := gate.RequireRole(domain.RoleAdmin)
	admin.Get("/users", requireAdmin(cfg.Admin.ListUsers))
	admin.Patch("/users/:id/role", requireAdmin(cfg.Admin.UpdateRole))

	protected := app.Group("/protected")
	protected.Get("/", gate.RequireRole(domain.RoleAdmin)(cfg.Protected.RoleOnly(domain.RoleAdmin)))
	protected.Post("/", gate.RequireRole(domain.RoleVendor)(cfg.Protected.RoleOnly(domain.RoleVendor)))
	protected.Put("/", gate.RequireRole(domain.RoleSupport)(cfg.Protected.RoleOnly(domain.RoleSupport)))
	protected.Get("/staff", gate.RequireAnyRole(domain.RoleAdmin, domain.RoleSupport)(cfg.Protected.Staff))
	protected.Get("/reports", gate.RequirePermissions(domain.PermissionViewReports)(cfg.Protected.Reports))
	protected.Get("/users", gate.RequirePermissions(domain.PermissionManageUsers)(cfg.Protected.UserDirectory))
}

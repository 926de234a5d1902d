package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bugdigest/bug-digest/internal/api/http/handlers"
	"github.com/bugdigest/bug-digest/internal/auth"
)

// RouteConfig bundles dependencies for route registration. A nil AuthMiddleware leaves
// the report and metrics routes unregistered.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Reports        *handlers.ReportsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.AuthMiddleware == nil {
		return
	}
	app.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeMetrics), cfg.Metrics.Get)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle)
	reports.Get("", auth.RequireScope(auth.ScopePreview), cfg.Reports.List)
	reports.Post("/:kind/run", auth.RequireScope(auth.ScopeRun), cfg.Reports.Run)
	reports.Get("/:kind/preview", auth.RequireScope(auth.ScopePreview), cfg.Reports.Preview)
	reports.Get("/:kind/runs", auth.RequireScope(auth.ScopePreview), cfg.Reports.Runs)
}

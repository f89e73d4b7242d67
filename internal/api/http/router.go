package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/inspection-audit/internal/api/http/handlers"
	"github.com/spec-kit/inspection-audit/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Inspections    *handlers.InspectionsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	inspections := app.Group("/inspections", cfg.AuthMiddleware.Handle, auth.RequireActiveUser())
	inspections.Get("/:id", cfg.Inspections.Get)
	inspections.Patch("/:id/status", cfg.Inspections.UpdateStatus)
	inspections.Post("/:id/changes", cfg.Inspections.RecordChange)
	inspections.Get("/:id/changes", cfg.Inspections.ListChanges)
	inspections.Get("/:id/changes/stream", cfg.Inspections.Stream)
}

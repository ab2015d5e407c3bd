package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
)

// RouteConfig bundles dependencies for route registration. Tickets may be nil when
// the service runs without PostgreSQL; AuthMiddleware nil disables the /api group.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
	Permissions    auth.PermissionReader
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	if cfg.AuthMiddleware == nil {
		return
	}
	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	if cfg.Tickets != nil {
		tickets := api.Group("/tickets", auth.RequirePermission(cfg.Permissions, "ticket"))
		tickets.Post("/", cfg.Tickets.CreateTicket)
		tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
		tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	}

	if cfg.SLA != nil {
		slaGroup := api.Group("/sla", auth.RequirePermission(cfg.Permissions, "sla"))
		slaGroup.Get("/timers", cfg.SLA.ListTimers)
		slaGroup.Post("/check", cfg.SLA.RunCheck)
	}
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/http/handlers"
	"github.com/spec-kit/routing-engine/internal/auth"
	"github.com/spec-kit/routing-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Rules          *handlers.RulesHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Everything except the health probes
// requires an admin or team-lead token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	admin := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.StaffRoleAdmin, domain.StaffRoleTeamLead))

	admin.Get("/assignment-rules", cfg.Rules.ListRules)
	admin.Post("/assignment-rules", cfg.Rules.CreateRule)
	admin.Patch("/assignment-rules/:id", cfg.Rules.UpdateRule)
	admin.Post("/assignment-rules/preview", cfg.Rules.Preview)

	admin.Get("/sla/policies", cfg.SLA.ListPolicies)

	admin.Post("/tickets/:id/assign", cfg.Tickets.Assign)
	admin.Post("/tickets/:id/sla-check", cfg.Tickets.SLACheck)
}

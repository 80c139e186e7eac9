package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-routing-service/internal/api/http/handlers"
	"github.com/spec-kit/query-routing-service/internal/auth"
	"github.com/spec-kit/query-routing-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Queries        *handlers.QueriesHandler
	Institutes     *handlers.InstitutesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	queries := api.Group("/queries")
	queries.Post("", auth.RequireRole(domain.RoleLeaf, domain.RoleRegional), cfg.Queries.RaiseQuery)
	queries.Post("/transfer", auth.RequireRole(domain.RoleRegional, domain.RoleApex, domain.RoleAdmin), cfg.Queries.TransferQueries)
	queries.Get("/:id", cfg.Queries.GetQuery)
	queries.Post("/:id/response", auth.RequireRole(domain.RoleRegional, domain.RoleApex), cfg.Queries.RespondQuery)
	queries.Get("/:id/history", auth.RequireRole(domain.RoleAdmin), cfg.Queries.GetQueryHistory)

	institutes := api.Group("/institutes/:id/queries")
	institutes.Get("/open", cfg.Institutes.ListOpen)
	institutes.Get("/closed", cfg.Institutes.ListClosed)
	institutes.Get("/transferred", cfg.Institutes.ListTransferred)
	institutes.Get("/report", cfg.Institutes.ReportCounts)
}

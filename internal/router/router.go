package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sman-go-api/internal/config"
	"github.com/noah-isme/sman-go-api/internal/handler"
	"github.com/noah-isme/sman-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PhaseHandler        *handler.PhaseHandler
	GroupHandler        *handler.GroupHandler
	EvaluationHandler   *handler.EvaluationHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.PhaseHandler != nil {
		phases := app.Group("/api/v2/phases", jwtMiddleware)
		deps.PhaseHandler.Register(phases)
	}

	if deps.GroupHandler != nil {
		groups := app.Group("/api/v2/groups", jwtMiddleware)
		deps.GroupHandler.Register(groups)
	}

	if deps.EvaluationHandler != nil {
		evaluations := app.Group("/api/v2/evaluations", jwtMiddleware)
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v2/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}

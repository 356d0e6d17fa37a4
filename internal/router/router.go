package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/astra-go-api/internal/config"
	"github.com/noah-isme/astra-go-api/internal/handler"
	"github.com/noah-isme/astra-go-api/internal/middleware"
	"github.com/noah-isme/astra-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExerciseHandler   *handler.ExerciseHandler
	SubmissionHandler *handler.SubmissionHandler
	DeviationHandler  *handler.DeviationHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
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

	exercises := api.Group("/exercises", jwtMiddleware)
	rounds := api.Group("/rounds", jwtMiddleware)
	if deps.ExerciseHandler != nil {
		deps.ExerciseHandler.Register(exercises, rounds)
	}

	if deps.SubmissionHandler != nil {
		// Submission reads are addressed by an unguessable token so that
		// asynchronous graders can reach them without a session. The group is
		// rate limited per IP since no user identity is available on it.
		submissions := api.Group("/submissions", middleware.RateLimit("submissions", 60, time.Minute))
		staffSubmissions := api.Group("/submissions", jwtMiddleware, middleware.RequireRole("teacher", "assistant"))
		deps.SubmissionHandler.Register(exercises, submissions, staffSubmissions)
	}

	if deps.DeviationHandler != nil {
		deviations := api.Group("/deviations", jwtMiddleware, middleware.RequireRole("teacher", "assistant"))
		deps.DeviationHandler.Register(deviations)
	}
}

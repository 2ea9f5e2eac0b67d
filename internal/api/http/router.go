package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	accounts := app.Group("/accounts")
	accounts.Post("/code", cfg.Accounts.RequestCode)
	accounts.Post("/code/confirm", cfg.Accounts.ConfirmCode)
	accounts.Post("", cfg.Accounts.Create)

	password := app.Group("/password")
	password.Post("/forgot", cfg.Accounts.ForgotPassword)
	password.Post("/forgot/confirm", cfg.Accounts.ConfirmResetCode)
	password.Post("/reset", cfg.Accounts.ResetPassword)

	app.Post("/auth/login", cfg.Accounts.Login)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/me", cfg.Authorizer.RequireAuthenticated(), cfg.Users.Me)
	users.Get("/:id", cfg.Authorizer.RequireObjectAccess(cfg.Users.UserResource), cfg.Users.Get)
	users.Get("/:id/profiles", cfg.Authorizer.RequireObjectAccess(cfg.Users.UserResource), cfg.Users.Profiles)
}

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/memorylayer/app/controllers"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/middleware"
)

type ApiRouter struct {
	deps *Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 60),
		Expiration: env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
	}))

	ac := controllers.NewAPIUserController(h.deps.Repos.User, h.deps.Billing)

	v1 := api.Group("/v1")
	v1.Get("/ping", ac.HandlePing)
	v1.Get("/me", middleware.APIKeyAuthMiddleware(h.deps.Credentials, h.deps.Repos.User), ac.HandleMe)
}

func NewApiRouter(deps *Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

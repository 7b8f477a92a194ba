package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/memorylayer/app/controllers"
	"github.com/ManuelReschke/memorylayer/internal/pkg/middleware"
)

type HttpRouter struct {
	deps *Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init oauth providers
	if h.deps.SetupOAuth != nil {
		h.deps.SetupOAuth()
	}

	// Resolve the session first, then apply the route classification
	app.Use(middleware.UserContextMiddleware(h.deps.Sessions, h.deps.Repos.User))
	app.Use(middleware.RouteGuard(h.deps.Authorizer))

	// Admin routes come after the CSRF group so its middleware covers them.
	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(deps *Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	bc := controllers.NewBillingController(h.deps.Webhooks, h.deps.Billing)

	// Payment provider webhooks (no CSRF, signature-verified in the processor)
	app.Post("/webhooks/payment", bc.HandleWebhook)

	if h.deps.SetupOAuth != nil {
		oc := controllers.NewOAuthController(
			controllers.NewAuthController(h.deps.Repos.User, h.deps.Sessions),
			h.deps.Repos.ProviderAccount,
		)
		app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
		app.Get("/auth/:provider/callback", oc.HandleCallback)
	}
}

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	ac := controllers.NewAdminController(h.deps.Repos)
	bc := controllers.NewBillingController(h.deps.Webhooks, h.deps.Billing)

	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/users", ac.HandleUsers)
	adminGroup.Post("/users/:id", ac.HandleUserUpdate)
	adminGroup.Get("/billing/flagged", bc.HandleFlaggedEvents)
}

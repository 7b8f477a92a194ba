package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/memorylayer/app/controllers"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next:           skipCSRF,
	}

	auth := controllers.NewAuthController(h.deps.Repos.User, h.deps.Sessions)
	users := controllers.NewUserController(h.deps.Repos)
	creds := controllers.NewCredentialController(h.deps.Credentials)
	bc := controllers.NewBillingController(h.deps.Webhooks, h.deps.Billing)

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", controllers.HandleHome)
	group.Get("/login", auth.HandleLoginPage)
	group.Post("/login", auth.HandleLogin)
	group.Post("/signup", auth.HandleSignup)
	group.Post("/logout", middleware.RequireAuth, auth.HandleLogout)

	group.Get("/dashboard", middleware.RequireAuth, controllers.HandleDashboard)
	group.Get("/settings", middleware.RequireAuth, users.HandleSettings)
	group.Post("/settings", middleware.RequireAuth, users.HandleSettingsUpdate)
	group.Get("/billing", middleware.RequireAuth, bc.HandleBilling)

	// Credential management is session-only; bearer credentials cannot mint more.
	group.Post("/credentials", middleware.RequireAPISessionAuth, creds.HandleCreate)
	group.Get("/credentials", middleware.RequireAPISessionAuth, creds.HandleList)
	group.Delete("/credentials/:id", middleware.RequireAPISessionAuth, creds.HandleRevoke)
}

// skipCSRF exempts the bearer API, signed webhooks and non-form credential
// calls. Only form posts can be forged cross-site without a CORS preflight.
func skipCSRF(c *fiber.Ctx) bool {
	p := c.Path()
	if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/webhooks/") {
		return true
	}
	if strings.HasPrefix(p, "/credentials") {
		ct := strings.ToLower(c.Get(fiber.HeaderContentType))
		return !strings.HasPrefix(ct, fiber.MIMEApplicationForm) &&
			!strings.HasPrefix(ct, fiber.MIMEMultipartForm) &&
			!strings.HasPrefix(ct, fiber.MIMETextPlain)
	}
	return false
}

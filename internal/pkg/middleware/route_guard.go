package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/memorylayer/internal/pkg/routeauth"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// RouteGuard applies the route authorizer to page requests. It must run after
// UserContextMiddleware.
func RouteGuard(authz *routeauth.Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hasSession := usercontext.GetUserContext(c).AuthMethod == usercontext.AuthSession
		d := authz.Decide(c.OriginalURL(), hasSession)

		if d.NoStore {
			setNoStore(c)
		}
		switch d.Outcome {
		case routeauth.Redirect:
			return c.Redirect(d.Target, fiber.StatusSeeOther)
		case routeauth.Deny:
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "access denied",
			})
		default:
			return c.Next()
		}
	}
}

func setNoStore(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, private")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}

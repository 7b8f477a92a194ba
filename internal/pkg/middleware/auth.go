package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
	icuser "github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

func hasSession(c *fiber.Ctx) bool {
	uc := icuser.GetUserContext(c)
	return uc.IsLoggedIn && uc.AuthMethod == icuser.AuthSession
}

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !hasSession(c) {
		return c.Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for JSON routes and returns 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !hasSession(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin session.
func RequireAdmin(c *fiber.Ctx) error {
	if !hasSession(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !icuser.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin access required",
		})
	}
	return c.Next()
}

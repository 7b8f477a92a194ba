package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// HandleHome is the public landing route.
func HandleHome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"app":        "memorylayer",
		"dev":        env.IsDev(),
		"logged_in":  usercontext.IsLoggedIn(c),
		"flash":      flash.Get(c),
		"login_path": constants.LoginRoute,
	})
}

// HandleDashboard is the protected landing page after login.
func HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	return c.JSON(fiber.Map{
		"user_id":     userCtx.UserID,
		"username":    userCtx.Username,
		"is_admin":    userCtx.IsAdmin,
		"flash":       flash.Get(c),
		"credentials": constants.CredentialsRoute,
		"billing":     constants.BillingRoute,
	})
}

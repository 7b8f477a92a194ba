package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/memorylayer/app/repository"
	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

type UserController struct {
	repos *repository.Repositories
}

func NewUserController(repos *repository.Repositories) *UserController {
	return &UserController{repos: repos}
}

// HandleSettings shows the caller's account.
func (uc *UserController) HandleSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := uc.repos.User.GetByID(userCtx.UserID)
	if err != nil {
		log.Printf("settings: user %d lookup failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}
	credentials, err := uc.repos.Credential.CountByOwner(user.ID)
	if err != nil {
		log.Printf("settings: credential count for user %d failed: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}

	return c.JSON(fiber.Map{
		"name":          user.Name,
		"email":         user.Email,
		"has_password":  user.Password != "",
		"credentials":   credentials,
		"last_login_at": formatTimePtr(user.LastLoginAt),
		"flash":         flash.Get(c),
		"csrf":          c.Locals("csrf"),
	})
}

// HandleSettingsUpdate changes the display name and, when given, the password.
func (uc *UserController) HandleSettingsUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	fail := func(msg string) error {
		return flash.WithError(c, fiber.Map{"type": "error", "message": msg}).Redirect(constants.SettingsRoute)
	}

	user, err := uc.repos.User.GetByID(userCtx.UserID)
	if err != nil {
		log.Printf("settings: user %d lookup failed: %v", userCtx.UserID, err)
		return fail("Account could not be loaded")
	}

	if name := c.FormValue("name"); name != "" {
		user.Name = name
	}
	if password := c.FormValue("password"); password != "" {
		if len(password) < 8 {
			return fail("Password must be at least 8 characters")
		}
		if user.Password != "" && !user.CheckPassword(c.FormValue("current_password")) {
			return fail("Current password is wrong")
		}
		if err := user.SetPassword(password); err != nil {
			return fail("Password could not be changed")
		}
	}
	if err := user.Validate(); err != nil {
		return fail("Validation failed: " + err.Error())
	}
	if err := uc.repos.User.Update(user); err != nil {
		log.Printf("settings: user %d update failed: %v", user.ID, err)
		return fail("Account could not be saved")
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Settings saved"}).Redirect(constants.SettingsRoute)
}

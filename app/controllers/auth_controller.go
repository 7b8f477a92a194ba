package controllers

import (
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/app/repository"
	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
	"github.com/ManuelReschke/memorylayer/internal/pkg/session"
)

// SessionManager starts and ends browser sessions.
type SessionManager interface {
	Establish(c *fiber.Ctx, principal session.Principal) error
	Destroy(c *fiber.Ctx) error
}

type AuthController struct {
	users    repository.UserRepository
	sessions SessionManager
	now      func() time.Time
}

func NewAuthController(users repository.UserRepository, sessions SessionManager) *AuthController {
	return &AuthController{
		users:    users,
		sessions: sessions,
		now:      time.Now,
	}
}

// HandleLoginPage describes the login form. The page itself is rendered by
// the frontend; pending flash messages and the return path are passed along.
func (ac *AuthController) HandleLoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"flash":    flash.Get(c),
		"redirect": safeRedirect(c.Query(constants.RedirectParam), constants.DashboardRoute),
		"csrf":     c.Locals("csrf"),
	})
}

// HandleLogin checks email and password and starts a session.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	target := safeRedirect(c.FormValue(constants.RedirectParam, c.Query(constants.RedirectParam)), constants.DashboardRoute)
	loginURL := constants.LoginRoute
	if target != constants.DashboardRoute {
		loginURL += "?" + constants.RedirectParam + "=" + url.QueryEscape(target)
	}

	fm := fiber.Map{
		"type": "error",
		// same message for unknown email, wrong password and inactive users
		"message": "There is a problem with the login process",
	}

	user, err := ac.users.GetByEmail(strings.ToLower(strings.TrimSpace(c.FormValue("email"))))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("login lookup failed: %v", err)
		}
		return flash.WithError(c, fm).Redirect(loginURL)
	}
	if !user.CheckPassword(c.FormValue("password")) || !user.IsActive() {
		return flash.WithError(c, fm).Redirect(loginURL)
	}

	if err := ac.establish(c, user); err != nil {
		log.Printf("login session for user %d failed: %v", user.ID, err)
		fm["message"] = "Could not start a session, please try again"
		return flash.WithError(c, fm).Redirect(loginURL)
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Welcome back!",
	}).Redirect(target)
}

// HandleSignup creates a password account. The user logs in afterwards.
func (ac *AuthController) HandleSignup(c *fiber.Ctx) error {
	user, err := models.CreateUser(c.FormValue("username"), c.FormValue("email"), c.FormValue("password"))
	if err == nil && len(c.FormValue("password")) < 8 {
		err = errors.New("password must be at least 8 characters")
	}
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "Please check your input: " + err.Error(),
		}).Redirect(constants.SignupRoute)
	}

	if err := ac.users.Create(user); err != nil {
		log.Printf("signup failed: %v", err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "Could not create the account",
		}).Redirect(constants.SignupRoute)
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Your account is ready, please log in",
	}).Redirect(constants.LoginRoute)
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := ac.sessions.Destroy(c); err != nil {
		log.Printf("logout failed: %v", err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "Logout failed, please try again",
		}).Redirect(constants.LoginRoute)
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Bye bye!",
	}).Redirect(constants.LoginRoute)
}

// establish starts the session for user and records the login time.
func (ac *AuthController) establish(c *fiber.Ctx, user *models.User) error {
	err := ac.sessions.Establish(c, session.Principal{
		OwnerID:  user.ID,
		Username: user.Name,
		IsAdmin:  user.IsAdmin(),
	})
	if err != nil {
		return err
	}
	if err := ac.users.TouchLastLogin(user.ID, ac.now()); err != nil {
		log.Printf("last login update for user %d failed: %v", user.ID, err)
	}
	return nil
}

// safeRedirect keeps post-login redirects on this site. Only absolute paths
// are accepted; "//host" and "/\host" are treated as external.
func safeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	if strings.ContainsAny(target, "\r\n") {
		return fallback
	}
	if strings.HasPrefix(target, constants.LoginRoute) || strings.HasPrefix(target, constants.LogoutRoute) {
		return fallback
	}
	return target
}

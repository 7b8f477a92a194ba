package controllers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/app/repository"
	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
)

// CompleteAuthFunc finishes the provider flow for the current request.
type CompleteAuthFunc func(c *fiber.Ctx) (goth.User, error)

type OAuthController struct {
	auth     *AuthController
	accounts repository.ProviderAccountRepository
	complete CompleteAuthFunc
}

func NewOAuthController(auth *AuthController, accounts repository.ProviderAccountRepository) *OAuthController {
	return &OAuthController{
		auth:     auth,
		accounts: accounts,
		complete: func(c *fiber.Ctx) (goth.User, error) {
			return gothfiber.CompleteUserAuth(c)
		},
	}
}

// HandleCallback completes the provider flow and logs the user in. Unknown
// identities are linked to the user with the same email or to a new account.
func (oc *OAuthController) HandleCallback(c *fiber.Ctx) error {
	u, err := oc.complete(c)
	if err != nil {
		log.Printf("oauth: completing %s failed: %v", c.Params("provider"), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "OAuth failed"})
	}
	if u.Provider == "" || u.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "OAuth returned no identity"})
	}

	appUser, err := oc.resolveUser(u)
	if err != nil {
		log.Printf("oauth: resolving %s user failed: %v", u.Provider, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}
	if !appUser.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account is not active"})
	}

	if err := oc.auth.establish(c, appUser); err != nil {
		log.Printf("oauth: session for user %d failed: %v", appUser.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session init failed"})
	}

	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

func (oc *OAuthController) resolveUser(u goth.User) (*models.User, error) {
	appUser, err := oc.accounts.GetUserByProviderID(u.Provider, u.UserID)
	if err == nil {
		return appUser, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if u.Email != "" {
		appUser, err = oc.auth.users.GetByEmail(u.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if appUser == nil {
		email := u.Email
		if email == "" {
			// unique placeholder for providers that do not share an email
			email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
		}
		appUser, err = models.CreateUser(firstNonEmpty(u.Name, u.NickName, "oauth user"), email, "")
		if err != nil {
			return nil, err
		}
		if err := oc.auth.users.Create(appUser); err != nil {
			return nil, err
		}
	}

	if err := oc.accounts.Link(appUser.ID, u.Provider, u.UserID); err != nil {
		return nil, err
	}
	return appUser, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

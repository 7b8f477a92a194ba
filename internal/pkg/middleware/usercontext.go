package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/internal/pkg/session"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the user context for every request from the
// session provider. If the provider fails the request continues as anonymous,
// so protected routes fail closed. Role and status are reloaded from the
// account on every request; a session whose account is gone or not active
// counts as anonymous.
func UserContextMiddleware(provider session.Provider, accounts AccountLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Goth keeps its own session on /auth/* routes.
		if strings.HasPrefix(c.Path(), "/auth/") {
			usercontext.SetUserContext(c, usercontext.Anonymous)
			return c.Next()
		}

		principal, err := provider.GetSessionForRequest(c)
		if err != nil {
			log.Printf("session lookup failed, continuing as anonymous: %v", err)
			usercontext.SetUserContext(c, usercontext.Anonymous)
			return c.Next()
		}
		if principal == nil || principal.OwnerID == 0 {
			usercontext.SetUserContext(c, usercontext.Anonymous)
			return c.Next()
		}

		account, err := accounts.GetByID(principal.OwnerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("session account %d lookup failed, continuing as anonymous: %v", principal.OwnerID, err)
			}
			usercontext.SetUserContext(c, usercontext.Anonymous)
			return c.Next()
		}
		if !account.IsActive() {
			usercontext.SetUserContext(c, usercontext.Anonymous)
			return c.Next()
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     account.ID,
			Username:   account.Name,
			IsLoggedIn: true,
			IsAdmin:    account.IsAdmin(),
			AuthMethod: usercontext.AuthSession,
		})
		return c.Next()
	}
}

package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/credential"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// CredentialVerifier maps a raw bearer secret to its owner.
type CredentialVerifier interface {
	Verify(ctx context.Context, raw string) (uint, error)
}

// AccountLookup loads the account behind an authenticated owner id.
type AccountLookup interface {
	GetByID(id uint) (*models.User, error)
}

// APIKeyAuthMiddleware authenticates requests carrying a bearer credential in
// the Authorization or X-API-Key header. Query parameters are never read.
// Credentials of accounts that are not active are refused.
func APIKeyAuthMiddleware(verifier CredentialVerifier, accounts AccountLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		ownerID, err := verifier.Verify(c.UserContext(), apiKey)
		if err != nil {
			if errors.Is(err, credential.ErrRejected) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		account, err := accounts.GetByID(ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key owner %d lookup failed: %v", ownerID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if !account.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     account.ID,
			Username:   account.Name,
			IsLoggedIn: true,
			IsAdmin:    account.IsAdmin(),
			AuthMethod: usercontext.AuthCredential,
		})
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/entitlements"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// PlanResolver returns the plan an owner is entitled to.
type PlanResolver interface {
	EffectivePlan(ctx context.Context, ownerID uint) (entitlements.Plan, error)
}

// UserLookup loads the account behind an owner id.
type UserLookup interface {
	GetByID(id uint) (*models.User, error)
}

type APIUserController struct {
	users UserLookup
	plans PlanResolver
}

func NewAPIUserController(users UserLookup, plans PlanResolver) *APIUserController {
	return &APIUserController{users: users, plans: plans}
}

// HandlePing answers the public health probe.
func (ac *APIUserController) HandlePing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// HandleMe returns the identity behind the presented credential.
func (ac *APIUserController) HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	account, err := ac.users.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		log.Printf("api: user %d lookup failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	if !account.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
	}

	plan, err := ac.plans.EffectivePlan(c.UserContext(), account.ID)
	if err != nil {
		log.Printf("api: plan lookup for user %d failed: %v", account.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plan"})
	}

	return c.JSON(fiber.Map{
		"user_id":       account.ID,
		"username":      account.Name,
		"plan":          plan,
		"auth":          userCtx.AuthMethod,
		"created_at":    formatTime(account.CreatedAt),
		"last_login_at": formatTimePtr(account.LastLoginAt),
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

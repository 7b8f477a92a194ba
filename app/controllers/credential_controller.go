package controllers

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/credential"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// CredentialManager is the credential lifecycle used by the controller.
type CredentialManager interface {
	Issue(ctx context.Context, ownerID uint, label string) (*credential.Issued, error)
	List(ctx context.Context, ownerID uint) ([]models.Credential, error)
	Revoke(ctx context.Context, ownerID uint, id string) error
}

// CredentialController serves the session-authenticated credential endpoints.
type CredentialController struct {
	credentials CredentialManager
	validate    *validator.Validate
}

func NewCredentialController(credentials CredentialManager) *CredentialController {
	return &CredentialController{
		credentials: credentials,
		validate:    validator.New(),
	}
}

type createCredentialRequest struct {
	Label string `json:"label" form:"label" validate:"max=100"`
}

type credentialView struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	CreatedAt  string      `json:"created_at"`
	LastUsedAt interface{} `json:"last_used_at"`
}

// HandleCreate issues a new credential. The raw secret is part of this
// response only.
func (cc *CredentialController) HandleCreate(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)

	var req createCredentialRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
		}
	}
	if err := cc.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Label must be at most 100 characters"})
	}

	issued, err := cc.credentials.Issue(c.UserContext(), ownerID, req.Label)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidLabel) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Label must be at most 100 characters"})
		}
		log.Printf("credential issue for user %d failed: %v", ownerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "could not create credential"})
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusCreated).JSON(issued)
}

// HandleList lists the caller's credentials without any secret material.
func (cc *CredentialController) HandleList(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)

	creds, err := cc.credentials.List(c.UserContext(), ownerID)
	if err != nil {
		log.Printf("credential list for user %d failed: %v", ownerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load credentials"})
	}

	out := make([]credentialView, 0, len(creds))
	for _, cred := range creds {
		out = append(out, credentialView{
			ID:         cred.ID,
			Label:      cred.Label,
			CreatedAt:  formatTime(cred.CreatedAt),
			LastUsedAt: formatTimePtr(cred.LastUsedAt),
		})
	}
	return c.JSON(out)
}

// HandleRevoke deletes one of the caller's credentials.
func (cc *CredentialController) HandleRevoke(c *fiber.Ctx) error {
	ownerID := usercontext.GetUserID(c)

	err := cc.credentials.Revoke(c.UserContext(), ownerID, c.Params("id"))
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, credential.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Credential not found"})
	default:
		log.Printf("credential revoke for user %d failed: %v", ownerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to revoke credential"})
	}
}

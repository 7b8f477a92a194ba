package controllers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/app/repository"
)

const adminUsersPerPage = 20

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	repos *repository.Repositories
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories) *AdminController {
	return &AdminController{
		repos: repos,
	}
}

// HandleUsers lists accounts with their credential counts
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * adminUsersPerPage

	totalUsers, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to get user count", err)
	}
	users, err := ac.repos.User.List(offset, adminUsersPerPage)
	if err != nil {
		return ac.handleError(c, "Failed to get users", err)
	}

	items := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		credentials, err := ac.repos.Credential.CountByOwner(u.ID)
		if err != nil {
			return ac.handleError(c, "Failed to count credentials", err)
		}
		items = append(items, fiber.Map{
			"id":            u.ID,
			"name":          u.Name,
			"email":         u.Email,
			"role":          u.Role,
			"status":        u.Status,
			"credentials":   credentials,
			"last_login_at": formatTimePtr(u.LastLoginAt),
		})
	}

	totalPages := int(totalUsers) / adminUsersPerPage
	if int(totalUsers)%adminUsersPerPage > 0 {
		totalPages++
	}

	return c.JSON(fiber.Map{
		"users":       items,
		"page":        page,
		"total_pages": totalPages,
		"total":       totalUsers,
	})
}

type adminUserUpdate struct {
	Role   string `json:"role" form:"role"`
	Status string `json:"status" form:"status"`
}

// HandleUserUpdate changes role or status of an account. The change applies
// to the account's open sessions and credentials on their next request.
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	var req adminUserUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return ac.handleError(c, "Failed to load user", err)
	}

	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Status != "" {
		user.Status = req.Status
	}
	if err := user.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Validation failed: " + err.Error()})
	}
	if err := ac.repos.User.Update(user); err != nil {
		return ac.handleError(c, "Failed to update user", err)
	}

	return c.JSON(fiber.Map{
		"id":       user.ID,
		"role":     user.Role,
		"status":   user.Status,
		"is_admin": user.Role == models.ROLE_ADMIN,
	})
}

// handleError logs the cause and answers with a generic 500
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Printf("admin: %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/domain"
)

// ProtectedHandler serves sample resources guarded by role and permission gates.
type ProtectedHandler struct{}

// NewProtectedHandler constructs handler.
func NewProtectedHandler() *ProtectedHandler {
	return &ProtectedHandler{}
}

// RoleOnly returns a handler announcing which role reached it.
func (h *ProtectedHandler) RoleOnly(role domain.Role) fiber.Handler {
	message := "This is a " + strings.ToLower(role.String()) + "-only route"
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": message, "role": role})
	}
}

// Staff handles GET /protected/staff.
func (h *ProtectedHandler) Staff(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "This route is open to admin and support staff"})
}

// Reports handles GET /protected/reports.
func (h *ProtectedHandler) Reports(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Report data", "permission": domain.PermissionViewReports})
}

// UserDirectory handles GET /protected/users.
func (h *ProtectedHandler) UserDirectory(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "User management", "permission": domain.PermissionManageUsers})
}

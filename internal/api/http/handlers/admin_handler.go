package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/api/dto"
	"github.com/spec-kit/session-gate/internal/domain"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

// UserAdmin is the part of service.UserService used over HTTP.
type UserAdmin interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
}

// AdminHandler exposes user administration.
type AdminHandler struct {
	users UserAdmin
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users UserAdmin) *AdminHandler {
	return &AdminHandler{users: users}
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.UserContext())
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return c.JSON(fiber.Map{"data": out})
}

// UpdateRole handles PATCH /admin/users/:id/role.
func (h *AdminHandler) UpdateRole(c *fiber.Ctx) error {
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid role", nil)
	}
	if !req.Role.Valid() {
		return apperrors.NewValidationError("invalid role", nil)
	}

	user, err := h.users.UpdateRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

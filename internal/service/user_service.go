package service

import (
	"context"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/repository"
)

// UserService backs the admin user endpoints.
type UserService struct {
	users  repository.UserRepository
	events events.Dispatcher
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher) *UserService {
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &UserService{users: users, events: dispatcher}
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// UpdateRole changes a user's role. Outstanding credentials keep the old role
// until their next renewal re-reads it.
func (s *UserService) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	_ = s.events.Publish(ctx, events.New(events.EventRoleChanged, id, updated.UpdatedAt,
		events.RoleChangedPayload{OldRole: current.Role, NewRole: updated.Role}))
	return updated, nil
}

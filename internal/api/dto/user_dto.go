package dto

import (
	"time"

	"github.com/spec-kit/session-gate/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for credential sign-in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedLoginRequest carries an ID token signed by the named provider.
type FederatedLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
}

// UpdateRoleRequest payload for PATCH /admin/users/:id/role.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	Permissions []string    `json:"permissions"`
}

// NewUserResponse projects a user for output.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions.Strings(),
	}
}

// SessionResponse describes the current credential.
type SessionResponse struct {
	SubjectID   string      `json:"subject_id"`
	Role        domain.Role `json:"role"`
	Permissions []string    `json:"permissions"`
	IssuedAt    int64       `json:"issued_at"`
	ExpiresAt   int64       `json:"expires_at"`
}

// NewSessionResponse projects a credential for output. The refresh token is never echoed.
func NewSessionResponse(c domain.Credential) SessionResponse {
	return SessionResponse{
		SubjectID:   c.SubjectID,
		Role:        c.Role,
		Permissions: c.Permissions.Strings(),
		IssuedAt:    c.IssuedAt.Unix(),
		ExpiresAt:   c.ExpiresAt.Unix(),
	}
}

// AuthResponse standard response for sign-in endpoints.
type AuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/api/dto"
	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/service"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

// AuthService is the part of service.AuthService used over HTTP.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*service.Session, error)
	SignIn(ctx context.Context, email, password string) (*service.Session, error)
	SignInFederated(ctx context.Context, provider, assertion string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error)
	SignOut(ctx context.Context, cred domain.Credential) error
	ForceRefresh(ctx context.Context, cred domain.Credential) (*service.Session, error)
}

// CredentialReader yields the caller's credential.
type CredentialReader interface {
	Credential(c *fiber.Ctx) (domain.Credential, bool)
}

// AuthHandler exposes sign-in, refresh and session endpoints.
type AuthHandler struct {
	auth        AuthService
	credentials CredentialReader
	lapsed      *auth.TokenExtractor
	cookie      auth.SessionCookie
}

// NewAuthHandler constructs handler. lapsed is used on logout, where an expired
// credential must still be able to revoke its refresh token.
func NewAuthHandler(authService AuthService, credentials CredentialReader, lapsed *auth.TokenExtractor, cookie auth.SessionCookie) *AuthHandler {
	return &AuthHandler{auth: authService, credentials: credentials, lapsed: lapsed, cookie: cookie}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	session, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return h.respondWithSession(c, http.StatusCreated, session)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	session, err := h.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return h.respondWithSession(c, http.StatusOK, session)
}

// Federated handles POST /auth/federated.
func (h *AuthHandler) Federated(c *fiber.Ctx) error {
	var req dto.FederatedLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Provider == "" || req.IDToken == "" {
		return apperrors.NewValidationError("provider and id_token required", nil)
	}

	session, err := h.auth.SignInFederated(c.UserContext(), req.Provider, req.IDToken)
	if err != nil {
		return mapServiceError(err)
	}
	return h.respondWithSession(c, http.StatusOK, session)
}

// Refresh handles POST /auth/refresh. Failures use the flat {"error": string} body.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req auth.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Refresh token is required"})
	}

	result, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRefreshTokenNotFound), errors.Is(err, domain.ErrUserNotFound):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid refresh token"})
	default:
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to refresh token"})
	}

	return c.JSON(auth.RefreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt.Unix(),
	})
}

// Logout handles POST /auth/logout. Clients without the refresh cookie may
// name the refresh token in the body instead.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	cred, ok := h.lapsed.ExtractForRenewal(c)
	if cred.RefreshToken == "" {
		var req auth.RefreshRequest
		if len(c.Body()) > 0 && c.BodyParser(&req) == nil {
			cred.RefreshToken = req.RefreshToken
		}
	}
	if ok || cred.RefreshToken != "" {
		if err := h.auth.SignOut(c.UserContext(), cred); err != nil {
			return mapServiceError(err)
		}
	}
	h.cookie.Clear(c)
	return c.SendStatus(http.StatusNoContent)
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	cred, ok := h.credentials.Credential(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(cred)})
}

// ForceRefresh handles POST /auth/force-refresh.
func (h *AuthHandler) ForceRefresh(c *fiber.Ctx) error {
	cred, ok := h.credentials.Credential(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	session, err := h.auth.ForceRefresh(c.UserContext(), cred)
	if err != nil {
		return mapServiceError(err)
	}
	return h.respondWithSession(c, http.StatusOK, session)
}

func (h *AuthHandler) respondWithSession(c *fiber.Ctx, status int, session *service.Session) error {
	h.cookie.Write(c, session.Credential, session.Token)
	return c.Status(status).JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(session.User),
			"auth": dto.AuthResponse{
				Token:        session.Token,
				RefreshToken: session.Credential.RefreshToken,
				ExpiresAt:    session.Credential.ExpiresAt,
			},
		},
	})
}

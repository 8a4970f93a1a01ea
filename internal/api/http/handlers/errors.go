package handlers

import (
	"errors"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/service"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

// mapServiceError translates domain sentinels into HTTP-facing errors.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, domain.ErrIdentityUnverified):
		return apperrors.NewUnauthorized("identity could not be verified")
	case errors.Is(err, domain.ErrProviderMismatch):
		return apperrors.NewConflict("account is linked to a different sign-in provider", nil)
	case errors.Is(err, domain.ErrRefreshTokenNotFound):
		return apperrors.NewUnauthorized("invalid refresh token")
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrPrincipalNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, domain.ErrEmailTaken):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, domain.ErrUnknownRole):
		return apperrors.NewValidationError("invalid role", nil)
	case errors.Is(err, service.ErrForceRefreshDisabled):
		return apperrors.NewForbidden(err.Error())
	default:
		return apperrors.NewInternalError(err)
	}
}

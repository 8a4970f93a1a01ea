package domain

import "errors"

var (
	ErrUnknownRole        = errors.New("unknown role")
	ErrUnknownPermission  = errors.New("unknown permission")
	ErrInvalidLifetime    = errors.New("credential must expire after it is issued")
	ErrMissingSubject     = errors.New("credential subject is required")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrRefreshTokenNotFound = errors.New("refresh token not found or expired")
	ErrIdentityUnverified   = errors.New("identity assertion could not be verified")
	ErrProviderMismatch     = errors.New("account is linked to a different sign-in provider")
)

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/service"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("rotate: %w", domain.ErrRefreshTokenNotFound), http.StatusUnauthorized},
		{fmt.Errorf("%w: token is expired", domain.ErrIdentityUnverified), http.StatusUnauthorized},
		{domain.ErrProviderMismatch, http.StatusConflict},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrEmailTaken, http.StatusConflict},
		{fmt.Errorf("%w: %q", domain.ErrUnknownRole, "ROOT"), http.StatusBadRequest},
		{service.ErrForceRefreshDisabled, http.StatusForbidden},
		{errors.New("pool exhausted"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			got := apperrors.ToDomainError(mapServiceError(tc.err))
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
	assert.NoError(t, mapServiceError(nil))
}

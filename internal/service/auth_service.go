package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/repository"
)

// ErrForceRefreshDisabled is returned by ForceRefresh in production.
var ErrForceRefreshDisabled = errors.New("force refresh not available in production")

// ProviderCredentials names accounts that sign in with email and password.
const ProviderCredentials = "credentials"

// Session is a freshly minted credential and its signed form.
type Session struct {
	User       *domain.User
	Credential domain.Credential
	Token      string
}

// AuthService coordinates sign-in, refresh and sign-out flows.
type AuthService struct {
	users      repository.UserRepository
	refresh    repository.RefreshTokenRepository
	tokens     *auth.TokenManager
	identities auth.IdentityVerifier
	events     events.Dispatcher
	sessionTTL time.Duration
	refreshTTL time.Duration
	// replays of a just-rotated refresh token inside this window get the same successor
	refreshGrace time.Duration
	bcryptCost   int
	production   bool
	now          func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	RefreshRepo repository.RefreshTokenRepository
	Tokens      *auth.TokenManager
	// Identities verifies federated sign-in assertions. Federated sign-in is
	// refused when nil.
	Identities auth.IdentityVerifier
	Events     events.Dispatcher
	Clock      func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &AuthService{
		users:      deps.UserRepo,
		refresh:    deps.RefreshRepo,
		tokens:       deps.Tokens,
		identities:   deps.Identities,
		events:       dispatcher,
		sessionTTL:   cfg.Auth.Session.Duration,
		refreshTTL:   cfg.Auth.RefreshTokenTTL,
		refreshGrace: cfg.Auth.RefreshReuseGrace,
		bcryptCost:   cfg.Auth.BcryptCost,
		production:   cfg.App.IsProduction(),
		now:          clock,
	}
}

// Register creates a USER account with a password and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Permissions:  domain.NewPermissionSet(),
		Provider:     ProviderCredentials,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.signIn(ctx, user)
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return s.signIn(ctx, user)
}

// SignInFederated verifies a provider-signed assertion and signs in the
// account it names, creating a USER account on first sight. An existing
// account is only reused when it was created through the same provider.
func (s *AuthService) SignInFederated(ctx context.Context, provider, assertion string) (*Session, error) {
	if s.identities == nil {
		return nil, domain.ErrIdentityUnverified
	}
	identity, err := s.identities.Verify(ctx, provider, assertion)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(identity.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = &domain.User{
			Name:        identity.Name,
			Email:       email,
			Role:        domain.RoleUser,
			Permissions: domain.NewPermissionSet(),
			Provider:    identity.Provider,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.Provider != identity.Provider:
		return nil, domain.ErrProviderMismatch
	}
	return s.signIn(ctx, user)
}

// Refresh exchanges a refresh token for a new access credential and a rotated
// refresh token. It implements auth.Refresher for in-process renewal.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrRefreshTokenNotFound
	}
	rotation, err := s.refresh.Rotate(ctx, refreshToken, s.refreshTTL, s.refreshGrace)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, rotation.SubjectID)
	if err != nil {
		s.revokeQuietly(ctx, rotation.Token)
		s.publish(ctx, events.EventRenewalRefused, rotation.SubjectID, events.RenewalRefusedPayload{Reason: err.Error()})
		return nil, err
	}

	session, err := s.mint(user, rotation.Token)
	if err != nil {
		return nil, err
	}

	if !rotation.Replayed {
		s.publish(ctx, events.EventSessionRenewed, user.ID, nil)
	}
	return &auth.RefreshResult{
		AccessToken:  session.Token,
		RefreshToken: rotation.Token,
		ExpiresAt:    session.Credential.ExpiresAt,
	}, nil
}

// SignOut revokes the credential's refresh token.
func (s *AuthService) SignOut(ctx context.Context, cred domain.Credential) error {
	if cred.RefreshToken != "" {
		if err := s.refresh.Revoke(ctx, cred.RefreshToken); err != nil {
			return err
		}
	}
	if cred.SubjectID != "" {
		s.publish(ctx, events.EventSignedOut, cred.SubjectID, nil)
	}
	return nil
}

// ForceRefresh reissues the credential with a full lifetime without touching
// the refresh token. Disabled in production.
func (s *AuthService) ForceRefresh(ctx context.Context, cred domain.Credential) (*Session, error) {
	if s.production {
		return nil, ErrForceRefreshDisabled
	}
	user, err := s.users.GetByID(ctx, cred.SubjectID)
	if err != nil {
		return nil, err
	}
	return s.mint(user, cred.RefreshToken)
}

func (s *AuthService) revokeQuietly(ctx context.Context, token string) {
	_ = s.refresh.Revoke(ctx, token)
}

func (s *AuthService) signIn(ctx context.Context, user *domain.User) (*Session, error) {
	refreshToken, err := s.refresh.Issue(ctx, user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	session, err := s.mint(user, refreshToken)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventSignedIn, user.ID, events.SignedInPayload{Provider: user.Provider, Role: user.Role})
	return session, nil
}

// mint always takes role and permissions from the stored user record.
func (s *AuthService) mint(user *domain.User, refreshToken string) (*Session, error) {
	now := s.now()
	cred, err := domain.NewCredential(user.ID, user.Role, user.Permissions, now, now.Add(s.sessionTTL), refreshToken)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Sign(cred)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}
	return &Session{User: user, Credential: cred, Token: token}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subjectID string, payload interface{}) {
	_ = s.events.Publish(ctx, events.New(eventType, subjectID, s.now(), payload))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/domain"
)

// HeaderSessionToken carries a renewed credential back to bearer clients.
const HeaderSessionToken = "X-Session-Token"

// SessionCookie writes the session credential cookie and, separately, the
// refresh token cookie.
type SessionCookie struct {
	Name        string
	RefreshName string
	RefreshTTL  time.Duration
	Secure      bool
}

// Write stores token until cred expires and cred's refresh token for RefreshTTL.
func (s SessionCookie) Write(c *fiber.Ctx, cred domain.Credential, token string) {
	s.set(c, s.Name, token, cred.ExpiresAt)
	if s.RefreshName == "" || cred.RefreshToken == "" {
		return
	}
	var expires time.Time
	if s.RefreshTTL > 0 {
		expires = time.Now().Add(s.RefreshTTL)
	}
	s.set(c, s.RefreshName, cred.RefreshToken, expires)
}

// Clear removes both cookies from the client.
func (s SessionCookie) Clear(c *fiber.Ctx) {
	s.set(c, s.Name, "", time.Unix(0, 0))
	if s.RefreshName != "" {
		s.set(c, s.RefreshName, "", time.Unix(0, 0))
	}
}

func (s SessionCookie) set(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   s.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SessionRefresher consults the lifecycle manager on every request and swaps
// in a renewed credential when the current one is close to or past expiry.
// Requests without a refresh token cookie are left to renew through
// POST /auth/refresh themselves.
type SessionRefresher struct {
	extractor *TokenExtractor
	tokens    *TokenManager
	lifecycle *LifecycleManager
	cookie    SessionCookie
	logger    *zap.Logger
}

// NewSessionRefresher constructs the middleware.
func NewSessionRefresher(extractor *TokenExtractor, tokens *TokenManager, lifecycle *LifecycleManager, cookie SessionCookie, logger *zap.Logger) *SessionRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRefresher{extractor: extractor, tokens: tokens, lifecycle: lifecycle, cookie: cookie, logger: logger}
}

// Handle renews the request credential when needed, then continues the chain.
func (s *SessionRefresher) Handle(c *fiber.Ctx) error {
	cred, ok := s.extractor.ExtractForRenewal(c)
	if !ok || cred.Error != "" || cred.RefreshToken == "" {
		return c.Next()
	}
	if s.lifecycle.Status(cred) == StateFresh {
		return c.Next()
	}

	next, err := s.lifecycle.Renew(c.UserContext(), cred)
	if next.SubjectID == "" {
		// request aborted; nothing to persist
		return c.Next()
	}
	if err != nil {
		s.logger.Info("session tagged after failed renewal", zap.String("subject_id", cred.SubjectID), zap.Error(err))
	}

	token, err := s.tokens.Sign(next)
	if err != nil {
		s.logger.Error("sign renewed credential", zap.Error(err))
		return c.Next()
	}
	if s.extractor.Replace(c, token, next.RefreshToken) {
		c.Set(HeaderSessionToken, token)
	}
	s.cookie.Write(c, next, token)
	return c.Next()
}

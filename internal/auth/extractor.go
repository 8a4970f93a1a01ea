package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/domain"
)

// CredentialExtractor reads the caller's credential from a request. A missing
// or undecodable credential yields false.
type CredentialExtractor interface {
	Extract(c *fiber.Ctx) (domain.Credential, bool)
}

// TokenExtractor reads a signed credential from the Authorization bearer header,
// falling back to the session cookie. The refresh token, when present, comes
// from its own cookie.
type TokenExtractor struct {
	tokens        *TokenManager
	cookieName    string
	refreshCookie string
}

// NewTokenExtractor constructs an extractor.
func NewTokenExtractor(tokens *TokenManager, cookieName, refreshCookie string) *TokenExtractor {
	return &TokenExtractor{tokens: tokens, cookieName: cookieName, refreshCookie: refreshCookie}
}

// Extract implements CredentialExtractor. Expired tokens are rejected.
func (e *TokenExtractor) Extract(c *fiber.Ctx) (domain.Credential, bool) {
	raw, _ := e.rawToken(c)
	if raw == "" {
		return domain.Credential{}, false
	}
	cred, err := e.tokens.Parse(raw)
	if err != nil {
		return domain.Credential{}, false
	}
	return e.withRefreshToken(c, cred), true
}

// ExtractForRenewal accepts expired tokens as long as the signature holds.
func (e *TokenExtractor) ExtractForRenewal(c *fiber.Ctx) (domain.Credential, bool) {
	raw, _ := e.rawToken(c)
	if raw == "" {
		return domain.Credential{}, false
	}
	cred, err := e.tokens.ParseAllowExpired(raw)
	if err != nil {
		return domain.Credential{}, false
	}
	return e.withRefreshToken(c, cred), true
}

// Replace swaps the credential and refresh token seen by the rest of the
// request pipeline and reports whether the credential was carried as a bearer token.
func (e *TokenExtractor) Replace(c *fiber.Ctx, token, refreshToken string) bool {
	if refreshToken != "" && e.refreshCookie != "" {
		c.Request().Header.SetCookie(e.refreshCookie, refreshToken)
	}
	if _, bearer := e.rawToken(c); bearer {
		c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		return true
	}
	c.Request().Header.SetCookie(e.cookieName, token)
	return false
}

func (e *TokenExtractor) withRefreshToken(c *fiber.Ctx, cred domain.Credential) domain.Credential {
	if e.refreshCookie != "" {
		cred.RefreshToken = c.Cookies(e.refreshCookie)
	}
	return cred
}

func (e *TokenExtractor) rawToken(c *fiber.Ctx) (string, bool) {
	if header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), true
		}
		return "", true
	}
	return c.Cookies(e.cookieName), false
}

package auth

import (
	"context"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/session-gate/internal/domain"
)

// IdentityVerifier turns a provider-issued assertion into a verified identity.
// Every failure wraps domain.ErrIdentityUnverified.
type IdentityVerifier interface {
	Verify(ctx context.Context, provider, assertion string) (domain.FederatedIdentity, error)
}

// IdentityClaims is the ID token payload expected from a provider.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTIdentityVerifier checks HS256 ID tokens signed with a per-provider shared
// secret. The token issuer must equal the provider name.
type JWTIdentityVerifier struct {
	keys     map[string][]byte
	audience string
}

// NewJWTIdentityVerifier builds a verifier for the given provider secrets. An
// empty audience skips the aud check.
func NewJWTIdentityVerifier(secrets map[string]string, audience string) *JWTIdentityVerifier {
	keys := make(map[string][]byte, len(secrets))
	for provider, secret := range secrets {
		if provider = strings.TrimSpace(provider); provider != "" && secret != "" {
			keys[provider] = []byte(secret)
		}
	}
	return &JWTIdentityVerifier{keys: keys, audience: audience}
}

// Verify implements IdentityVerifier.
func (v *JWTIdentityVerifier) Verify(_ context.Context, provider, assertion string) (domain.FederatedIdentity, error) {
	key, ok := v.keys[provider]
	if !ok {
		return domain.FederatedIdentity{}, fmt.Errorf("%w: provider %q not configured", domain.ErrIdentityUnverified, provider)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(provider),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(assertion, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return domain.FederatedIdentity{}, fmt.Errorf("%w: %v", domain.ErrIdentityUnverified, err)
	}
	if !parsed.Valid {
		return domain.FederatedIdentity{}, domain.ErrIdentityUnverified
	}
	if claims.Subject == "" || strings.TrimSpace(claims.Email) == "" {
		return domain.FederatedIdentity{}, fmt.Errorf("%w: subject and email required", domain.ErrIdentityUnverified)
	}
	if !claims.EmailVerified {
		return domain.FederatedIdentity{}, fmt.Errorf("%w: email not verified by provider", domain.ErrIdentityUnverified)
	}

	return domain.FederatedIdentity{
		Provider: provider,
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}

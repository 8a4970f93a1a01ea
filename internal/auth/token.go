package auth

import (
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/session-gate/internal/domain"
)

// TokenManager signs credentials into JWTs and decodes them back.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes JWT payload. The refresh token is never part of it.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Error       string   `json:"error,omitempty"`
	jwt.RegisteredClaims
}

// Sign encodes the credential as an HS256 JWT. cred.RefreshToken is not
// encoded; it travels separately.
func (tm *TokenManager) Sign(cred domain.Credential) (string, error) {
	claims := &Claims{
		Role:        cred.Role.String(),
		Permissions: cred.Permissions.Strings(),
		Error:       cred.Error,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.SubjectID,
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(cred.IssuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Parse validates the signature and expiry and returns the credential without
// a refresh token. Unknown roles or permissions make the token invalid.
func (tm *TokenManager) Parse(tokenStr string) (domain.Credential, error) {
	return tm.parse(tokenStr)
}

// ParseAllowExpired is Parse without the expiry check, for renewal of lapsed sessions.
func (tm *TokenManager) ParseAllowExpired(tokenStr string) (domain.Credential, error) {
	return tm.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (tm *TokenManager) parse(tokenStr string, opts ...jwt.ParserOption) (domain.Credential, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return domain.Credential{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Credential{}, errors.New("invalid token claims")
	}
	return claims.credential()
}

func (c *Claims) credential() (domain.Credential, error) {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return domain.Credential{}, errors.New("token lifetime claims missing")
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Credential{}, err
	}
	perms, err := domain.ParsePermissions(c.Permissions)
	if err != nil {
		return domain.Credential{}, err
	}
	cred, err := domain.NewCredential(c.Subject, role, perms, c.IssuedAt.Time, c.ExpiresAt.Time, "")
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	cred.Error = c.Error
	return cred, nil
}

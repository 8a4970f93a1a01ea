package domain

import "time"

// RefreshErrorTag marks a credential whose renewal failed.
const RefreshErrorTag = "RefreshAccessTokenError"

// Credential is the session artifact presented on every request. It is a value:
// renewal produces a new Credential instead of changing an existing one.
type Credential struct {
	SubjectID    string
	Role         Role
	Permissions  PermissionSet
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RefreshToken string
	Error        string
}

// NewCredential validates the fields and returns a Credential with second precision timestamps.
func NewCredential(subjectID string, role Role, perms PermissionSet, issuedAt, expiresAt time.Time, refreshToken string) (Credential, error) {
	if subjectID == "" {
		return Credential{}, ErrMissingSubject
	}
	if !role.Valid() {
		return Credential{}, ErrUnknownRole
	}
	issuedAt = issuedAt.Truncate(time.Second)
	expiresAt = expiresAt.Truncate(time.Second)
	if !expiresAt.After(issuedAt) {
		return Credential{}, ErrInvalidLifetime
	}
	return Credential{
		SubjectID:    subjectID,
		Role:         role,
		Permissions:  perms.Clone(),
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		RefreshToken: refreshToken,
	}, nil
}

// Authenticated reports whether the credential may be used to authorize a request.
func (c Credential) Authenticated() bool {
	return c.SubjectID != "" && c.Error == ""
}

// Remaining returns how long the credential stays valid after now.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// WithError returns a copy tagged with the terminal error and held until holdUntil.
func (c Credential) WithError(tag string, holdUntil time.Time) Credential {
	out := c
	out.Permissions = c.Permissions.Clone()
	out.Error = tag
	out.ExpiresAt = holdUntil.Truncate(time.Second)
	if !out.ExpiresAt.After(out.IssuedAt) {
		out.IssuedAt = out.ExpiresAt.Add(-time.Second)
	}
	return out
}

package domain

import "time"

// User is the persisted account backing a credential.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Permissions  PermissionSet
	Provider     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the projection of a user used to mint credentials.
type Principal struct {
	ID          string
	Role        Role
	Permissions PermissionSet
}

// Principal projects the user into its authorization claims.
func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Role: u.Role, Permissions: u.Permissions.Clone()}
}

// FederatedIdentity is an identity whose assertion was verified against the
// issuing provider.
type FederatedIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

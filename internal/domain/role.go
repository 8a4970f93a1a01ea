package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role is the coarse-grained authorization category carried by a credential.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleVendor  Role = "VENDOR"
	RoleSupport Role = "SUPPORT"
	RoleUser    Role = "USER"
)

// Roles lists every recognized role.
var Roles = []Role{RoleAdmin, RoleVendor, RoleSupport, RoleUser}

// ParseRole converts a raw claim into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleSupport, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON rejects roles outside the closed set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Permission is a fine-grained capability tag, independent of role.
type Permission string

const (
	PermissionManageUsers    Permission = "manage_users"
	PermissionViewReports    Permission = "view_reports"
	PermissionManageProducts Permission = "manage_products"
	PermissionManageOrders   Permission = "manage_orders"
	PermissionHandleTickets  Permission = "handle_tickets"
)

// ParsePermission converts a raw claim into a Permission, rejecting unknown values.
func ParsePermission(raw string) (Permission, error) {
	perm := Permission(strings.ToLower(strings.TrimSpace(raw)))
	switch perm {
	case PermissionManageUsers, PermissionViewReports, PermissionManageProducts,
		PermissionManageOrders, PermissionHandleTickets:
		return perm, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
}

// ParsePermissions parses every entry of raw and returns them as a set.
func ParsePermissions(raw []string) (PermissionSet, error) {
	set := make(PermissionSet, len(raw))
	for _, item := range raw {
		perm, err := ParsePermission(item)
		if err != nil {
			return nil, err
		}
		set[perm] = struct{}{}
	}
	return set, nil
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is a member of the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Contains reports whether every permission in required is present (AND semantics).
func (s PermissionSet) Contains(required PermissionSet) bool {
	for p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Strings returns the sorted string form of the set.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

package domain

import (
	"fmt"
	"strings"
)

// Role is a role name from the closed set this service recognises.
type Role string

// Identity roles are granted to accounts; organization roles to memberships.
// Admin is valid in both scopes.
const (
	RoleUser   Role = "User"
	RoleAdmin  Role = "Admin"
	RoleOwner  Role = "Owner"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// DefaultRole is assigned to every identity at sign-up.
const DefaultRole = RoleUser

// ValidRoles returns every recognised role.
func ValidRoles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleOwner, RoleEditor, RoleViewer}
}

// OrgRoles returns the roles a membership may carry.
func OrgRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleEditor, RoleViewer}
}

// IsValidRole checks whether the given role string is a recognised role.
// Matching is exact; "admin" is not "Admin".
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

// IsOrgRole checks whether role may be stored on a membership.
func IsOrgRole(role Role) bool {
	for _, r := range OrgRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole validates s against the closed set.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if !IsValidRole(s) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return Role(s), nil
}

// RoleNames converts roles to plain strings, dropping blanks and duplicates
// while keeping order.
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if strings.TrimSpace(string(r)) == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, string(r))
	}
	return out
}

package auth

import (
	"errors"
	"slices"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer may read device state.
	RoleViewer Role = "viewer"

	// RoleOperator may also switch the LED.
	RoleOperator Role = "operator"

	// RoleAdmin may also read the audit log.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role, lowest first. Each role holds the
// permissions of the roles before it.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidRole  = errors.New("invalid role")
)

// ABOUTME: Closed role type for console sessions
// ABOUTME: Roles are parsed once at the identity boundary and never compared as raw strings

package session

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned by ParseRole for anything other than admin or user.
var ErrUnknownRole = errors.New("unknown role")

// Role is the console role of an authenticated user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleUser}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string {
	return string(r)
}

// Package auth models the caller identity the platform trusts. Token
// issuance and verification live outside this service; handlers only see
// a resolved Identity.
package auth

import (
	"context"
	"errors"
)

// Role is the caller's privilege level. Levels are ordered: developer
// implies admin, admin implies user.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
	RoleDeveloper
)

// String returns the canonical role name as stored in the accounts table.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RoleDeveloper:
		return "developer"
	default:
		return "anonymous"
	}
}

// ParseRole maps a stored role name to a Role. Unknown names are anonymous.
func ParseRole(s string) Role {
	switch s {
	case "user":
		return RoleUser
	case "admin":
		return RoleAdmin
	case "developer":
		return RoleDeveloper
	default:
		return RoleAnonymous
	}
}

// AtLeast reports whether the role grants the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Identity is a resolved caller.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

// ErrBadCredentials is returned by an Authenticator when the presented
// token does not resolve to an account.
var ErrBadCredentials = errors.New("invalid credentials")

// Authenticator resolves a bearer token to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

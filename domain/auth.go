package domain

import (
	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleSystem     = "system"
)

type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// CanAccessOwner reports whether the caller may read or change the settings of an owner.
func (c *Claims) CanAccessOwner(ownerType OwnerType, ownerID int) bool {
	if c.Role == RoleSuperAdmin {
		return true
	}
	return ownerType == OwnerUser && ownerID == c.UserID
}

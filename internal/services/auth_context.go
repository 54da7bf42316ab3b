package services

import "sewain/internal/models"

// AuthContext identifies the caller of a service operation. It is built from
// the request's JWT claims by the middleware and passed explicitly into every
// mutating operation instead of being read from ambient state.
type AuthContext struct {
	UserID   string
	Role     models.Role
	Verified bool
}

// IsAdmin reports whether the caller has the admin role.
func (a AuthContext) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// IsPartner reports whether the caller has the partner role.
func (a AuthContext) IsPartner() bool {
	return a.Role == models.RolePartner
}

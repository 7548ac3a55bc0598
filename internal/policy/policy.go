package policy

import "taskboard/internal/models"

// Identity is the verified caller attached to a request after
// authentication.
type Identity struct {
	UserID int
	Role   string
}

// CanAccess reports whether the caller may read or mutate a resource owned
// by ownerID: admins always, everyone else only their own resources.
func CanAccess(ownerID int, ident Identity) bool {
	return ident.Role == models.RoleAdmin || ownerID == ident.UserID
}

// HasRole reports whether the caller holds one of the allowed roles.
func HasRole(ident Identity, roles ...string) bool {
	for _, role := range roles {
		if ident.Role == role {
			return true
		}
	}
	return false
}

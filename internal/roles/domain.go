package roles

import "time"

// Role is a named permission bundle, optionally scoped to one application
// and optionally chained to a single parent role.
type Role struct {
	ID              int64
	ApplicationID   *int64
	ApplicationCode *string
	Code            string
	Name            string
	IsSystem        bool
	ParentRoleID    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsGlobal reports whether the role is visible to every application.
func (r Role) IsGlobal() bool {
	return r.ApplicationID == nil
}

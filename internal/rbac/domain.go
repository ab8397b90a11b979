package rbac

import (
	"strings"
	"time"
)

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the role has been soft-deleted.
func (r Role) Deleted() bool {
	return r.DeletedAt != nil
}

// Permission represents an atomic capability. Permissions are opaque values:
// they are unioned and compared for membership, never pattern-matched.
type Permission struct {
	ID          int64  `json:"id"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Resource    string `json:"resource,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// Key returns the membership key used by the authorization middleware.
func (p Permission) Key() string {
	return strings.ToLower(p.Module + "." + p.Action)
}

// RoleGrant is a user-to-role assignment edge. Edges are never physically
// deleted; removal deactivates them and restore reactivates them.
type RoleGrant struct {
	Role           Role       `json:"role"`
	UserID         int64      `json:"userId"`
	AssignedAt     time.Time  `json:"assignedAt"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	Active         bool       `json:"active"`
}

// Valid reports whether the grant contributes permissions at the given
// instant: it must be active and unexpired.
func (g RoleGrant) Valid(now time.Time) bool {
	if !g.Active {
		return false
	}
	return g.ExpirationDate == nil || g.ExpirationDate.After(now)
}

// PermissionGrant is a role-to-permission assignment edge.
type PermissionGrant struct {
	Permission Permission `json:"permission"`
	RoleID     int64      `json:"roleId"`
	AssignedAt time.Time  `json:"assignedAt"`
	Active     bool       `json:"active"`
}

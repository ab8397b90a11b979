package roles

import "time"

// Role represents a role in the catalog. A non-nil DeletedAt marks the role
// soft-deleted; existing assignments keep pointing at it.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

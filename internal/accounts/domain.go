package accounts

import (
	"fmt"
	"time"

	"github.com/civica-console/civica/internal/shared"
)

// Status enumerates the persisted account lifecycle states.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusBlocked   Status = "BLOCKED"
)

// User represents a console account for a member of the municipal personnel.
type User struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	PersonID         int64      `json:"personId"`
	Status           Status     `json:"status"`
	BlockedUntil     *time.Time `json:"blockedUntil,omitempty"`
	BlockReason      string     `json:"blockReason,omitempty"`
	SuspensionEnd    *time.Time `json:"suspensionEnd,omitempty"`
	SuspensionReason string     `json:"suspensionReason,omitempty"`
	DirectManagerID  *int64     `json:"directManagerId,omitempty"`
	AreaID           int64      `json:"areaId"`
	PositionID       int64      `json:"positionId"`
	Version          int32      `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
}

// EffectiveStatus overlays the temporal lock on the stored status. A stored
// BLOCKED status whose deadline already passed is reported as-is; expired
// locks are only reverted by ForceUnblockExpired, never at read time.
func (u User) EffectiveStatus(now time.Time) Status {
	if u.BlockedUntil != nil && u.BlockedUntil.After(now) {
		return StatusBlocked
	}
	return u.Status
}

// BlockMode selects how a block deadline is computed: a duration in hours or
// an absolute instant. Exactly one alternative is set; construct values with
// ParseBlockMode so ambiguous payloads are rejected up front.
type BlockMode struct {
	hours int
	until *time.Time
}

// ParseBlockMode builds a BlockMode from the loosely-typed request fields.
func ParseBlockMode(durationHours *int, until *time.Time) (BlockMode, error) {
	switch {
	case durationHours != nil && until != nil:
		return BlockMode{}, fmt.Errorf("accounts: durationHours and blockedUntil are mutually exclusive: %w", shared.ErrValidation)
	case durationHours != nil:
		if *durationHours <= 0 {
			return BlockMode{}, fmt.Errorf("accounts: durationHours must be positive: %w", shared.ErrValidation)
		}
		return BlockMode{hours: *durationHours}, nil
	case until != nil:
		return BlockMode{until: until}, nil
	default:
		return BlockMode{}, fmt.Errorf("accounts: either durationHours or blockedUntil is required: %w", shared.ErrValidation)
	}
}

// Deadline resolves the block expiry instant relative to now. An absolute
// instant must lie strictly in the future.
func (m BlockMode) Deadline(now time.Time) (time.Time, error) {
	if m.until != nil {
		if !m.until.After(now) {
			return time.Time{}, fmt.Errorf("accounts: blockedUntil must be in the future: %w", shared.ErrValidation)
		}
		return *m.until, nil
	}
	if m.hours <= 0 {
		return time.Time{}, fmt.Errorf("accounts: block mode not set: %w", shared.ErrValidation)
	}
	return now.Add(time.Duration(m.hours) * time.Hour), nil
}

// MergeBlocked reconciles the general listing with the blocked-only listing.
// The two inputs may have been fetched at different instants; ids present in
// both keep the general record's fields with the status overlaid to BLOCKED,
// ids only present in the blocked listing are taken as-is. The result carries
// no duplicate ids and preserves the general listing's order.
func MergeBlocked(allUsers, blockedUsers []User) []User {
	index := make(map[int64]int, len(allUsers))
	merged := make([]User, len(allUsers))
	copy(merged, allUsers)
	for i := range merged {
		index[merged[i].ID] = i
	}
	for _, blocked := range blockedUsers {
		if i, ok := index[blocked.ID]; ok {
			merged[i].Status = StatusBlocked
			continue
		}
		index[blocked.ID] = len(merged)
		merged = append(merged, blocked)
	}
	return merged
}

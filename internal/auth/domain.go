package auth

import "time"

// User carries the credential fields needed to authenticate a console login.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Status       string
	BlockedUntil *time.Time
}

// CanLogin reports whether the account may start a session at the given
// instant: the stored status must be ACTIVE and no temporal lock may be in
// force.
func (u User) CanLogin(now time.Time) bool {
	if u.Status != "ACTIVE" {
		return false
	}
	return u.BlockedUntil == nil || !u.BlockedUntil.After(now)
}

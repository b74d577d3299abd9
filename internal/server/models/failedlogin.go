package models

import "time"

// FailedLogin is the per-user row of failed_login_attempts.
type FailedLogin struct {
	UserID            string
	Count             int
	LastFailedAttempt time.Time
	LockoutUntil      *time.Time
}

// Locked reports whether the lockout is in force at now.
func (f *FailedLogin) Locked(now time.Time) bool {
	return f != nil && f.LockoutUntil != nil && now.Before(*f.LockoutUntil)
}

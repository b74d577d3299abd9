package models

import "time"

// PasswordReset is a row of password_resets. TokenHash is the digest of
// the token handed to the user.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type PasswordChangeStatus string

const (
	PasswordChangePending PasswordChangeStatus = "pending"
	PasswordChangeSuccess PasswordChangeStatus = "success"
	PasswordChangeFailed  PasswordChangeStatus = "failed"
)

// PasswordChangeLog is an append-only row of password_change_requests_logs.
type PasswordChangeLog struct {
	ID          string
	UserID      string
	RequestTime time.Time
	Status      PasswordChangeStatus
	IPAddress   string
	UserAgent   string
}

package models

import "time"

// AuditAction names a security-relevant event.
type AuditAction string

const (
	ActionAccountCreated       AuditAction = "Account-Created"
	ActionAccountLogin         AuditAction = "Account-Login"
	ActionAccountLoginFailed   AuditAction = "Account-Login-Failed"
	ActionAccountLoginBlocked  AuditAction = "Account-Login-Blocked"
	ActionAccountLockout       AuditAction = "Account-Lockout"
	ActionAccountUnlocked      AuditAction = "Account-Unlocked"
	ActionAccountLogout        AuditAction = "Account-Logout"
	ActionAccountDeactivated   AuditAction = "Account-Deactivated"
	ActionAccountActivated     AuditAction = "Account-Activated"
	ActionSessionRefreshed     AuditAction = "Session-Refreshed"
	ActionSessionRefreshReused AuditAction = "Session-Refresh-Reused"
	ActionPasswordChanged      AuditAction = "Password-Changed"
	ActionPasswordChangeFailed AuditAction = "Password-Change-Failed"
	ActionPasswordResetRequest AuditAction = "Password-Reset-Requested"
	ActionPasswordReset        AuditAction = "Password-Reset"
)

// AuditLog is an append-only row of audit_logs.
type AuditLog struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	IPAddress string      `json:"ip_address,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
	Action    AuditAction `json:"action"`
	CreatedAt time.Time   `json:"created_at"`
}

// Package common defines shared constants and sentinel errors used across
// the authentication core. Callers should use errors.Is to match these values.
package common

import "errors"

// authFailedMessage is the only text callers ever see for credential,
// lockout and inactive-account failures.
const authFailedMessage = "authentication failed"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrUserExists = errors.New("user already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Login errors. They print identically so a caller cannot tell an
	// unknown username from a wrong password or a locked account.
	ErrInvalidCredentials = errors.New(authFailedMessage)
	ErrAccountLocked      = errors.New(authFailedMessage)
	ErrAccountInactive    = errors.New(authFailedMessage)

	// Session lifecycle errors.
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshReused   = errors.New("refresh token reused")

	// Access token errors (invalid signature or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Password reset token errors.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenUsed    = errors.New("token already used")

	// Validation errors.
	ErrPasswordPolicy  = errors.New("password does not satisfy policy")
	ErrInvalidUserName = errors.New("invalid user name")
)

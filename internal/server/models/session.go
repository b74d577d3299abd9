package models

import "time"

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionRevoked SessionStatus = "revoked"
	SessionExpired SessionStatus = "expired"
)

// Session is a row of the sessions table. TokenHash and RefreshTokenHash
// hold SHA-256 digests; raw tokens are never stored.
type Session struct {
	ID                    string
	UserID                string
	FamilyID              string
	TokenHash             string
	RefreshTokenHash      string
	Status                SessionStatus
	CreatedAt             time.Time
	ExpiresAt             time.Time
	RevokedAt             *time.Time
	LastUsedAt            *time.Time
	UserAgent             string
	IPAddress             string
	TimeoutMinutes        *int
	RefreshTokenExpiresAt time.Time
	LastRefreshAt         *time.Time
	ReplacedBy            *string
}

// IdleExpired reports whether the idle timeout elapsed at now.
func (s *Session) IdleExpired(now time.Time) bool {
	if s.TimeoutMinutes == nil || *s.TimeoutMinutes <= 0 {
		return false
	}
	last := s.CreatedAt
	if s.LastUsedAt != nil {
		last = *s.LastUsedAt
	}
	return now.Sub(last) > time.Duration(*s.TimeoutMinutes)*time.Minute
}

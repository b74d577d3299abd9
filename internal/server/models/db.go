// Package models defines server-side data models persisted in the database.
package models

import "time"

// ClientInfo is the origin metadata attached to sessions and log rows.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// User is a row of the users table.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

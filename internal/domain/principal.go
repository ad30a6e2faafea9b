package domain

import "time"

// Principal is a registered identity that can log in and receive tokens.
type Principal struct {
	ID           string
	Identity     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

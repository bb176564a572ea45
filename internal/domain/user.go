package domain

import "time"

// User is an authenticated account that owns video records.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

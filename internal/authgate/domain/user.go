package domain

import "time"

// User is a credential record. Only Disabled changes after creation.
type User struct {
	ID           string
	Username     string
	FullName     string
	PasswordHash string // PHC-style argon2id or bcrypt
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package entities

import (
	"time"

	"github.com/lib/pq"
)

// User represents a registered account with its tracked wallet addresses
type User struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	DOB          time.Time      `db:"dob"`
	PasswordHash string         `db:"password_hash"`
	Addresses    pq.StringArray `db:"addresses"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

package domain

import (
	"strings"
	"time"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for an account holder.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Phone         *string
	BirthDate     *time.Time
	Status        UserStatus
	EmailVerified bool
	IsSuperuser   bool
	Profiles      []Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail trims and lower-cases an address so that lookups and code
// subjects agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

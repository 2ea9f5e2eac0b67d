package domain

import "time"

// ProfileType enumerates the roles an account may hold.
type ProfileType string

const (
	ProfileTypeAdmin      ProfileType = "ADMIN"
	ProfileTypeUser       ProfileType = "USER"
	ProfileTypeStudent    ProfileType = "STUDENT"
	ProfileTypeIntern     ProfileType = "INTERN"
	ProfileTypeEmployee   ProfileType = "EMPLOYEE"
	ProfileTypeContractor ProfileType = "CONTRACTOR"
)

// ProfileStatus qualifies whether a held profile currently grants anything.
type ProfileStatus string

const (
	ProfileStatusActive   ProfileStatus = "ACTIVE"
	ProfileStatusInactive ProfileStatus = "INACTIVE"
)

var profileTypes = map[ProfileType]struct{}{
	ProfileTypeAdmin:      {},
	ProfileTypeUser:       {},
	ProfileTypeStudent:    {},
	ProfileTypeIntern:     {},
	ProfileTypeEmployee:   {},
	ProfileTypeContractor: {},
}

// Valid reports whether t is a known profile type.
func (t ProfileType) Valid() bool {
	_, ok := profileTypes[t]
	return ok
}

// SelfAssignable reports whether the profile may be obtained through public
// registration. ADMIN is granted out of band only.
func (t ProfileType) SelfAssignable() bool {
	return t.Valid() && t != ProfileTypeAdmin
}

// Profile is a role assignment held by a user.
type Profile struct {
	ID        string
	UserID    string
	Type      ProfileType
	Status    ProfileStatus
	Bio       *string
	CreatedAt time.Time
}

package domain

import "time"

// VerificationCode proves control of SubjectIdentifier once validated.
// Validated is the only field that ever changes after creation.
type VerificationCode struct {
	SubjectIdentifier string
	Code              string
	CreatedAt         time.Time
	Validated         bool
}

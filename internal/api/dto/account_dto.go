package dto

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// AccountCodeRequest asks for a registration code.
type AccountCodeRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ProfileType string `json:"profile_type" validate:"required"`
}

// CodeConfirmRequest validates a code for either flow.
type CodeConfirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// CreateAccountRequest completes registration. Name may be omitted when
// the email already has an account.
type CreateAccountRequest struct {
	Email                string  `json:"email" validate:"required,email"`
	Code                 string  `json:"code" validate:"required"`
	Name                 string  `json:"name" validate:"omitempty,max=150"`
	Password             string  `json:"password" validate:"required"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"required"`
	ProfileType          string  `json:"profile_type" validate:"required"`
	Phone                *string `json:"phone" validate:"omitempty,e164"`
	BirthDate            *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Bio                  *string `json:"bio" validate:"omitempty,max=500"`
}

// ParsedBirthDate returns BirthDate as a time. Validate has already checked the layout.
func (r CreateAccountRequest) ParsedBirthDate() *time.Time {
	if r.BirthDate == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *r.BirthDate)
	if err != nil {
		return nil
	}
	return &t
}

// PasswordForgotRequest asks for a reset code.
type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetRequest sets a new password with a validated code.
type PasswordResetRequest struct {
	Email                string `json:"email" validate:"required,email"`
	Code                 string `json:"code" validate:"required"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Phone         *string           `json:"phone,omitempty"`
	EmailVerified bool              `json:"email_verified"`
	IsSuperuser   bool              `json:"is_superuser"`
	Profiles      []ProfileResponse `json:"profiles"`
}

// NewProfileResponses maps domain profiles.
func NewProfileResponses(profiles []domain.Profile) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, ProfileResponse{
			ID:        p.ID,
			Type:      string(p.Type),
			Status:    string(p.Status),
			Bio:       p.Bio,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		EmailVerified: u.EmailVerified,
		IsSuperuser:   u.IsSuperuser,
		Profiles:      NewProfileResponses(u.Profiles),
	}
}

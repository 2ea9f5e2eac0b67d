package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ValidatePasswordPolicy checks strength and that confirmation matches.
// Every failed rule is reported under details["password"].
func ValidatePasswordPolicy(password, confirmation string) error {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an upper-case letter")
	}
	if !lower {
		problems = append(problems, "must contain a lower-case letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain a special character")
	}

	details := map[string]any{}
	if len(problems) > 0 {
		details["password"] = problems
	}
	if password != confirmation {
		details["password_confirmation"] = "does not match password"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("password does not meet requirements", details)
	}
	return nil
}

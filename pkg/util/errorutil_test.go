package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsSystemError_PassesDomainErrorsThrough(t *testing.T) {
	rule := NewBusinessRule("profile already exists", nil)

	got := AsSystemError(rule, "could not issue code")

	assert.Same(t, rule, got)
	assert.True(t, IsBusinessRule(got))
	assert.False(t, IsSystem(got))
}

func TestAsSystemError_PassesWrappedDomainErrorsThrough(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewNotFoundMessage("invalid code"))

	got := AsSystemError(wrapped, "could not validate code")

	assert.True(t, IsNotFound(got))
}

func TestAsSystemError_WrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")

	got := AsSystemError(cause, "could not issue code")

	require.True(t, IsSystem(got))
	assert.ErrorIs(t, got, cause)
	de := ToDomainError(got)
	assert.Equal(t, "could not issue code", de.Message)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
}

func TestAsSystemError_Nil(t *testing.T) {
	assert.NoError(t, AsSystemError(nil, "unused"))
}

func TestToDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad code length", nil), CodeValidation, http.StatusBadRequest},
		{"not found", NewNotFound("user", nil), CodeNotFound, http.StatusNotFound},
		{"business rule", NewBusinessRule("duplicate", nil), CodeBusinessRule, http.StatusUnprocessableEntity},
		{"rate limited", NewRateLimited("slow down", 30), CodeRateLimited, http.StatusTooManyRequests},
		{"unauthorized", NewUnauthorized("missing token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbidden("not owner"), CodeForbidden, http.StatusForbidden},
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"wrapped no rows", fmt.Errorf("load user: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestIsBusinessRule_IncludesRateLimited(t *testing.T) {
	assert.True(t, IsBusinessRule(NewRateLimited("slow down", 10)))
	assert.False(t, IsBusinessRule(NewValidationError("x", nil)))
}

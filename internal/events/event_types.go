package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/identity-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCodeIssued     EventType = "code_issued"
	EventCodeRedeemed   EventType = "code_redeemed"
	EventAccountCreated EventType = "account_created"
	EventPasswordReset  EventType = "password_reset"
)

// AllTypes lists every event the services publish.
func AllTypes() []EventType {
	return []EventType{EventCodeIssued, EventCodeRedeemed, EventAccountCreated, EventPasswordReset}
}

// Purpose says which flow a verification code belongs to.
type Purpose string

const (
	PurposeAccountCreation Purpose = "account_creation"
	PurposePasswordReset   Purpose = "password_reset"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, email, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CodePayload accompanies code_issued and code_redeemed.
type CodePayload struct {
	Purpose Purpose `json:"purpose"`
}

// AccountCreatedPayload payload.
type AccountCreatedPayload struct {
	ProfileType domain.ProfileType `json:"profile_type"`
	NewUser     bool               `json:"new_user"`
}

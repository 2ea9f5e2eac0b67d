package service

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
)

func TestNewNotifier_FallsBackToLogging(t *testing.T) {
	n := NewNotifier(config.NotificationConfig{EmailFrom: "noreply@x.com"}, zap.NewNop())
	assert.IsType(t, &LogNotifier{}, n)

	n = NewNotifier(config.NotificationConfig{SMTPHost: "smtp.x.com", SMTPPort: "587"}, zap.NewNop())
	assert.IsType(t, &SMTPNotifier{}, n)
}

func TestSMTPNotifier_Send(t *testing.T) {
	n := NewSMTPNotifier(config.NotificationConfig{
		EmailFrom:    "noreply@x.com",
		SMTPHost:     "smtp.x.com",
		SMTPPort:     "2525",
		SMTPUsername: "mailer",
		SMTPPassword: "secret",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, n.Send(context.Background(), "a@x.com", "Hello", "body text"))

	assert.Equal(t, "smtp.x.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@x.com", gotFrom)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nbody text")
}

func TestSMTPNotifier_PropagatesFailures(t *testing.T) {
	n := NewSMTPNotifier(config.NotificationConfig{SMTPHost: "smtp.x.com", SMTPPort: "25"})
	relay := errors.New("relay refused")
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return relay }

	assert.ErrorIs(t, n.Send(context.Background(), "a@x.com", "s", "b"), relay)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, "a@x.com", "s", "b"), context.Canceled)
}

func TestNotificationService_LogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewDispatcher()
	NewNotificationService(dispatcher, zap.New(core)).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventPasswordReset, "a@x.com", "u1", nil)))

	entries := logs.FilterMessage("password_reset").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}

func TestCodeMessage(t *testing.T) {
	subject, body := codeMessage(events.PurposePasswordReset, "qwerty", 30)
	assert.Contains(t, subject, "password reset")
	assert.Contains(t, body, "qwerty")
	assert.Contains(t, body, "30 minutes")

	subject, _ = codeMessage(events.PurposeAccountCreation, "qwerty", 30)
	assert.Contains(t, subject, "verification")
}

package service

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
)

// Notifier delivers a message to a recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SMTPNotifier sends plain text mail through an SMTP relay.
type SMTPNotifier struct {
	addr     string
	host     string
	from     string
	username string
	password string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier picks SMTP when a host is configured and falls back to logging.
func NewNotifier(cfg config.NotificationConfig, logger *zap.Logger) Notifier {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return NewLogNotifier(logger, cfg.EmailFrom)
	}
	return NewSMTPNotifier(cfg)
}

// NewSMTPNotifier builds an SMTP notifier. Auth is skipped without a username.
func NewSMTPNotifier(cfg config.NotificationConfig) *SMTPNotifier {
	return &SMTPNotifier{
		addr:     fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
		host:     cfg.SMTPHost,
		from:     cfg.EmailFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		sendMail: smtp.SendMail,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", n.from, recipient, subject, body)

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}
	return n.sendMail(n.addr, auth, n.from, []string{recipient}, []byte(msg))
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
	from   string
}

func NewLogNotifier(logger *zap.Logger, from string) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, from: from}
}

func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.logger.Info("sendEmailNotificationStub",
		zap.String("from", n.from),
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)))
	return nil
}

// NotificationService records account lifecycle events in the log.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(n.handleEvent, events.AllTypes()...)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("email", event.Email),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func codeMessage(purpose events.Purpose, code string, ttlMinutes int) (subject, body string) {
	switch purpose {
	case events.PurposePasswordReset:
		subject = "Your password reset code"
		body = fmt.Sprintf("Use the code %s to reset your password. It expires in %d minutes.\n"+
			"If you did not ask for a reset you can ignore this message.", code, ttlMinutes)
	default:
		subject = "Your account verification code"
		body = fmt.Sprintf("Use the code %s to confirm your email address. It expires in %d minutes.", code, ttlMinutes)
	}
	return subject, body
}

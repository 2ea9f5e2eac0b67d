package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

const (
	msgInvalidCode          = "invalid code"
	msgInvalidOrUnvalidated = "invalid or unvalidated code"

	opIssue    = "issue"
	opValidate = "validate"
	opRedeem   = "redeem"

	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// VerificationService owns the lifecycle of email verification codes:
// issue, validate, then redeem exactly once.
type VerificationService struct {
	codes     repository.VerificationCodeRepository
	generator CodeGenerator
	now       func() time.Time
	metrics   *observability.Metrics
	logger    *zap.Logger

	ttl      time.Duration
	length   int
	alphabet map[rune]struct{}
}

// VerificationDependencies wires collaborators. Clock, Metrics and Logger are optional.
type VerificationDependencies struct {
	CodeRepo  repository.VerificationCodeRepository
	Generator CodeGenerator
	Clock     func() time.Time
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewVerificationService builds the service. cfg is expected to have passed Validate.
func NewVerificationService(cfg config.VerificationConfig, deps VerificationDependencies) *VerificationService {
	alphabet := make(map[rune]struct{}, len(cfg.CodeAlphabet))
	for _, r := range cfg.CodeAlphabet {
		alphabet[r] = struct{}{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		codes:     deps.CodeRepo,
		generator: deps.Generator,
		now:       clock,
		metrics:   deps.Metrics,
		logger:    logger,
		ttl:       cfg.TTL(),
		length:    cfg.CodeLength,
		alphabet:  alphabet,
	}
}

// TTL returns how long an issued code may be redeemed.
func (s *VerificationService) TTL() time.Duration {
	return s.ttl
}

// IssueCode replaces any code held by subject with a fresh one and purges
// every expired code in the same store call.
func (s *VerificationService) IssueCode(ctx context.Context, subject string) (*domain.VerificationCode, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		s.metrics.RecordCodeOperation(opIssue, outcomeRejected)
		return nil, apperrors.NewValidationError("subject identifier is required", nil)
	}

	value, err := s.generator.Generate()
	if err != nil {
		s.metrics.RecordCodeOperation(opIssue, outcomeError)
		return nil, apperrors.NewSystemError("could not generate verification code", err)
	}

	now := s.now().UTC()
	code := &domain.VerificationCode{
		SubjectIdentifier: subject,
		Code:              value,
		CreatedAt:         now,
	}
	if err := s.codes.ReplaceForSubject(ctx, code, now.Add(-s.ttl)); err != nil {
		s.metrics.RecordCodeOperation(opIssue, outcomeError)
		return nil, apperrors.AsSystemError(err, "could not store verification code")
	}

	s.metrics.RecordCodeOperation(opIssue, outcomeOK)
	s.logger.Debug("verification code issued", zap.String("subject", subject))
	return code, nil
}

// ValidateCode marks the (subject, code) pair as validated. Calling it again
// on a validated code succeeds. Expiry is enforced at redemption.
func (s *VerificationService) ValidateCode(ctx context.Context, subject, code string) error {
	subject = strings.TrimSpace(subject)
	if err := s.checkFormat(code); err != nil {
		s.metrics.RecordCodeOperation(opValidate, outcomeRejected)
		return err
	}

	if err := s.codes.MarkValidated(ctx, subject, code); err != nil {
		if repository.IsNotFound(err) {
			s.metrics.RecordCodeOperation(opValidate, outcomeRejected)
			return apperrors.NewNotFoundMessage(msgInvalidCode)
		}
		s.metrics.RecordCodeOperation(opValidate, outcomeError)
		return apperrors.AsSystemError(err, "could not validate verification code")
	}

	s.metrics.RecordCodeOperation(opValidate, outcomeOK)
	return nil
}

// RedeemAndConsume deletes the validated, unexpired code for subject. Of any
// number of concurrent calls for the same pair, exactly one succeeds.
func (s *VerificationService) RedeemAndConsume(ctx context.Context, subject, code string) error {
	subject = strings.TrimSpace(subject)
	notBefore := s.now().UTC().Add(-s.ttl)

	if _, err := s.codes.ConsumeValidated(ctx, subject, code, notBefore); err != nil {
		if repository.IsNotFound(err) {
			s.metrics.RecordCodeOperation(opRedeem, outcomeRejected)
			return apperrors.NewNotFoundMessage(msgInvalidOrUnvalidated)
		}
		s.metrics.RecordCodeOperation(opRedeem, outcomeError)
		return apperrors.AsSystemError(err, "could not redeem verification code")
	}

	s.metrics.RecordCodeOperation(opRedeem, outcomeOK)
	s.logger.Debug("verification code redeemed", zap.String("subject", subject))
	return nil
}

// PurgeExpired removes every code older than the TTL.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.codes.DeleteExpired(ctx, s.now().UTC().Add(-s.ttl))
	if err != nil {
		return 0, apperrors.AsSystemError(err, "could not purge expired codes")
	}
	s.metrics.RecordCodesSwept(n)
	return n, nil
}

func (s *VerificationService) checkFormat(code string) error {
	if utf8.RuneCountInString(code) != s.length {
		return apperrors.NewValidationError("invalid code format", map[string]any{
			"code": fmt.Sprintf("must be exactly %d characters", s.length),
		})
	}
	for _, r := range code {
		if _, ok := s.alphabet[r]; !ok {
			return apperrors.NewValidationError("invalid code format", map[string]any{
				"code": "contains characters outside the allowed alphabet",
			})
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// RateLimiter throttles an action per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// AccountService coordinates registration, password reset and login flows.
// Both code-driven flows go through the VerificationService.
type AccountService struct {
	users        repository.UserRepository
	profiles     repository.ProfileRepository
	verification *VerificationService
	notifier     Notifier
	limiter      RateLimiter
	attempts     RateLimiter
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	tokenMgr     *auth.TokenManager
	bcryptCost   int
}

// AccountDependencies encapsulates collaborators for the account service.
// Limiter throttles code requests and AttemptLimiter code confirmations; both
// are optional, as is Dispatcher.
type AccountDependencies struct {
	UserRepo       repository.UserRepository
	ProfileRepo    repository.ProfileRepository
	Verification   *VerificationService
	Notifier       Notifier
	Limiter        RateLimiter
	AttemptLimiter RateLimiter
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:        deps.UserRepo,
		profiles:     deps.ProfileRepo,
		verification: deps.Verification,
		notifier:     deps.Notifier,
		limiter:      deps.Limiter,
		attempts:     deps.AttemptLimiter,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		tokenMgr:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:   cfg.Auth.BcryptCost,
	}
}

// CreateAccountInput carries everything needed to finish registration.
type CreateAccountInput struct {
	Email                string
	Code                 string
	Name                 string
	Password             string
	PasswordConfirmation string
	ProfileType          domain.ProfileType
	Phone                *string
	BirthDate            *time.Time
	Bio                  *string
}

// LoginResult is returned by Login.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// codeSubject keeps the two flows' codes apart, so a code sent for one can
// never complete the other.
func codeSubject(purpose events.Purpose, email string) string {
	return string(purpose) + ":" + email
}

// RequestAccountCode emails a code that proves control of email for
// registering a profile of the given type.
func (s *AccountService) RequestAccountCode(ctx context.Context, email string, profileType domain.ProfileType) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}
	if err := checkProfileType(profileType); err != nil {
		return err
	}

	if err := s.allow(ctx, s.limiter, "account:"+email); err != nil {
		return err
	}

	exists, err := s.profiles.ExistsForEmail(ctx, email, profileType)
	if err != nil {
		return apperrors.AsSystemError(err, "could not check existing profiles")
	}
	if exists {
		return apperrors.NewBusinessRule("an account with this email already holds this profile", map[string]any{
			"profile_type": string(profileType),
		})
	}

	return s.issueAndSend(ctx, events.PurposeAccountCreation, email, "")
}

// ConfirmAccountCode validates a registration code.
func (s *AccountService) ConfirmAccountCode(ctx context.Context, email, code string) error {
	return s.confirm(ctx, codeSubject(events.PurposeAccountCreation, domain.NormalizeEmail(email)), code)
}

// CreateAccount consumes a validated registration code and creates the user,
// or attaches a new profile when the email already has an account whose
// password the caller knows.
func (s *AccountService) CreateAccount(ctx context.Context, in CreateAccountInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required", nil)
	}
	if err := checkProfileType(in.ProfileType); err != nil {
		return nil, err
	}
	if err := auth.ValidatePasswordPolicy(in.Password, in.PasswordConfirmation); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if auth.ComparePassword(existing.PasswordHash, in.Password) != nil {
			return nil, apperrors.NewBusinessRule("an account with this email already exists; use its password to add a profile", nil)
		}
		held, err := s.profiles.ExistsForEmail(ctx, email, in.ProfileType)
		if err != nil {
			return nil, apperrors.AsSystemError(err, "could not check existing profiles")
		}
		if held {
			return nil, apperrors.NewBusinessRule("an account with this email already holds this profile", map[string]any{
				"profile_type": string(in.ProfileType),
			})
		}
	case repository.IsNotFound(err):
		if strings.TrimSpace(in.Name) == "" {
			return nil, apperrors.NewValidationError("name is required", nil)
		}
	default:
		return nil, apperrors.AsSystemError(err, "could not load account")
	}

	if err := s.verification.RedeemAndConsume(ctx, codeSubject(events.PurposeAccountCreation, email), in.Code); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventCodeRedeemed, email, "", events.CodePayload{Purpose: events.PurposeAccountCreation}))

	profile := &domain.Profile{Type: in.ProfileType, Status: domain.ProfileStatusActive, Bio: in.Bio}

	var user *domain.User
	if existing == nil {
		user, err = s.createUser(ctx, email, in, profile)
	} else {
		user, err = s.attachProfile(ctx, existing, profile)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventAccountCreated, email, user.ID, events.AccountCreatedPayload{
		ProfileType: in.ProfileType,
		NewUser:     existing == nil,
	}))
	return user, nil
}

func checkProfileType(t domain.ProfileType) error {
	if !t.Valid() {
		return apperrors.NewValidationError("unknown profile type", map[string]any{"profile_type": string(t)})
	}
	if !t.SelfAssignable() {
		return apperrors.NewBusinessRule("this profile type cannot be requested", map[string]any{"profile_type": string(t)})
	}
	return nil
}

func (s *AccountService) createUser(ctx context.Context, email string, in CreateAccountInput, profile *domain.Profile) (*domain.User, error) {
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewSystemError("could not hash password", err)
	}
	user := &domain.User{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		PasswordHash:  hash,
		Phone:         in.Phone,
		BirthDate:     in.BirthDate,
		Status:        domain.UserStatusActive,
		EmailVerified: true,
	}
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBusinessRule("an account with this email already exists", nil)
		}
		return nil, apperrors.AsSystemError(err, "could not create account")
	}
	return user, nil
}

func (s *AccountService) attachProfile(ctx context.Context, user *domain.User, profile *domain.Profile) (*domain.User, error) {
	profile.UserID = user.ID
	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewBusinessRule("an account with this email already holds this profile", map[string]any{
				"profile_type": string(profile.Type),
			})
		}
		return nil, apperrors.AsSystemError(err, "could not add profile")
	}
	if !user.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, apperrors.AsSystemError(err, "could not mark email verified")
		}
		user.EmailVerified = true
	}

	profiles, err := s.profiles.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.AsSystemError(err, "could not load profiles")
	}
	user.Profiles = profiles
	return user, nil
}

// RequestPasswordReset emails a reset code. Unknown addresses get the same
// success response and no email.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	if err := s.allow(ctx, s.limiter, "reset:"+email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return apperrors.AsSystemError(err, "could not load account")
	}

	return s.issueAndSend(ctx, events.PurposePasswordReset, email, user.ID)
}

// ConfirmPasswordResetCode validates a reset code.
func (s *AccountService) ConfirmPasswordResetCode(ctx context.Context, email, code string) error {
	return s.confirm(ctx, codeSubject(events.PurposePasswordReset, domain.NormalizeEmail(email)), code)
}

// confirm counts every attempt, right or wrong, against subject before
// checking the code.
func (s *AccountService) confirm(ctx context.Context, subject, code string) error {
	if err := s.allow(ctx, s.attempts, "confirm:"+subject); err != nil {
		return err
	}
	return s.verification.ValidateCode(ctx, subject, code)
}

// ResetPassword consumes a validated reset code and stores the new password.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, password, confirmation string) error {
	email = domain.NormalizeEmail(email)
	if err := auth.ValidatePasswordPolicy(password, confirmation); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFoundMessage(msgInvalidOrUnvalidated)
		}
		return apperrors.AsSystemError(err, "could not load account")
	}

	if err := s.verification.RedeemAndConsume(ctx, codeSubject(events.PurposePasswordReset, email), code); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventCodeRedeemed, email, user.ID, events.CodePayload{Purpose: events.PurposePasswordReset}))

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewSystemError("could not hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperrors.AsSystemError(err, "could not update password")
	}

	s.publish(ctx, events.New(events.EventPasswordReset, email, user.ID, nil))
	return nil
}

// Login authenticates by email and password and issues an access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.AsSystemError(err, "could not load account")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewForbidden("account suspended")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, apperrors.NewSystemError("could not issue token", err)
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// GetUser loads a user together with its profiles.
func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.AsSystemError(err, "could not load user")
	}
	profiles, err := s.profiles.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.AsSystemError(err, "could not load profiles")
	}
	user.Profiles = profiles
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AccountService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AccountService) issueAndSend(ctx context.Context, purpose events.Purpose, email, userID string) error {
	code, err := s.verification.IssueCode(ctx, codeSubject(purpose, email))
	if err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventCodeIssued, email, userID, events.CodePayload{Purpose: purpose}))

	subject, body := codeMessage(purpose, code.Code, int(s.verification.TTL()/time.Minute))
	if err := s.notifier.Send(ctx, email, subject, body); err != nil {
		return apperrors.NewSystemError("could not send verification email", err)
	}
	return nil
}

// allow consults limiter. An unreachable limiter store lets the request
// through; only an explicit RATE_LIMITED refusal stops it.
func (s *AccountService) allow(ctx context.Context, limiter RateLimiter, key string) error {
	if limiter == nil {
		return nil
	}
	err := limiter.Allow(ctx, key)
	if err == nil || apperrors.HasCode(err, apperrors.CodeRateLimited) {
		return err
	}
	s.logger.Warn("rate limiter unavailable", zap.Error(err))
	return nil
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

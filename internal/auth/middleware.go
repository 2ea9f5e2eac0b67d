package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/authz"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User     *domain.User
	Profiles []domain.Profile
}

// Subject converts the principal for the decision engine. A nil principal is anonymous.
func (p *Principal) Subject() authz.Subject {
	if p == nil {
		return authz.Anonymous()
	}
	return authz.SubjectFromUser(p.User, p.Profiles)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	profiles repository.ProfileRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, profiles repository.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, profiles: profiles}
}

// Handle loads the caller when a bearer token is present. Requests without an
// Authorization header continue anonymously; whether that is acceptable is
// decided by Authorize. A malformed or invalid token is rejected outright.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	user, err := m.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.AsSystemError(err, "could not load user")
	}
	if user.Status != domain.UserStatusActive {
		return apperrors.NewUnauthorized("account suspended")
	}

	profiles, err := m.profiles.ListByUser(ctx, user.ID)
	if err != nil {
		return apperrors.AsSystemError(err, "could not load profiles")
	}
	user.Profiles = profiles

	c.Locals(principalKey, &Principal{User: user, Profiles: profiles})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// SubjectFromContext returns the caller as an authz subject, anonymous if none.
func SubjectFromContext(c *fiber.Ctx) authz.Subject {
	principal, _ := PrincipalFromContext(c)
	return principal.Subject()
}

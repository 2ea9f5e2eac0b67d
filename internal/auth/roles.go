package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/authz"
	"github.com/spec-kit/identity-service/internal/observability"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// ResourceLoader returns the resource a request targets.
type ResourceLoader func(c *fiber.Ctx) authz.Resource

// Authorizer turns engine decisions into HTTP outcomes.
type Authorizer struct {
	engine  *authz.Engine
	metrics *observability.Metrics
}

// NewAuthorizer wraps engine. metrics may be nil.
func NewAuthorizer(engine *authz.Engine, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{engine: engine, metrics: metrics}
}

// RequireAuthenticated admits any authenticated caller.
func (a *Authorizer) RequireAuthenticated() fiber.Handler {
	return a.authorize(false, nil)
}

// RequireObjectAccess admits superusers, active admins and the owner of the
// resource returned by load.
func (a *Authorizer) RequireObjectAccess(load ResourceLoader) fiber.Handler {
	return a.authorize(true, load)
}

func (a *Authorizer) authorize(requiresObjectCheck bool, load ResourceLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := SubjectFromContext(c)

		var resource authz.Resource
		if load != nil {
			resource = load(c)
		}

		allowed := a.engine.IsAuthorized(c.UserContext(), subject, resource, requiresObjectCheck)
		a.metrics.RecordDecision(requiresObjectCheck, allowed)
		if allowed {
			return c.Next()
		}
		if !subject.Authenticated {
			return apperrors.NewUnauthorized("authentication required")
		}
		return apperrors.NewForbidden("you do not have access to this resource")
	}
}

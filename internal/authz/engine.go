// Package authz decides whether a subject may act, globally or on a specific
// resource.
package authz

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Engine evaluates authorization requests. It never mutates its inputs and
// never fails: every problem resolves to deny.
type Engine struct {
	logger *zap.Logger
}

// NewEngine builds an engine. A nil logger is replaced by a no-op one.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// IsAuthorized evaluates, in order: authentication, non-object scope,
// superuser, active ADMIN profile, and finally resource ownership. Role checks
// always run before the owner lookup so ownership only ever grants access
// that no role granted.
func (e *Engine) IsAuthorized(ctx context.Context, subject Subject, resource Resource, requiresObjectCheck bool) bool {
	if !subject.Authenticated {
		return false
	}
	if !requiresObjectCheck {
		return true
	}
	// object scope re-checks authentication on its own
	if !subject.Authenticated {
		return false
	}
	if subject.Superuser {
		return true
	}
	if HasActiveProfile(subject, domain.ProfileTypeAdmin) {
		return true
	}
	if resource == nil {
		return false
	}

	ownerID, err := e.resolveOwner(ctx, resource)
	if err != nil {
		e.logger.Debug("owner resolution failed", zap.String("subject_id", subject.ID), zap.Error(err))
		return false
	}
	return ownerID != "" && ownerID == subject.ID
}

func (e *Engine) resolveOwner(ctx context.Context, resource Resource) (ownerID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolve owner panicked: %v", r)
		}
	}()
	return resource.ResolveOwner(ctx)
}

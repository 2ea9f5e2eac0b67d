package authz

import (
	"context"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Subject is the acting principal as seen by the decision engine.
// The zero value is an anonymous caller.
type Subject struct {
	ID            string
	Authenticated bool
	Superuser     bool
	Profiles      []domain.Profile
}

// Anonymous returns an unauthenticated subject.
func Anonymous() Subject {
	return Subject{}
}

// SubjectFromUser builds an authenticated subject for user holding profiles.
func SubjectFromUser(user *domain.User, profiles []domain.Profile) Subject {
	if user == nil {
		return Anonymous()
	}
	return Subject{
		ID:            user.ID,
		Authenticated: true,
		Superuser:     user.IsSuperuser,
		Profiles:      profiles,
	}
}

// Resource is implemented by every type that can be protected by an
// ownership check. ResolveOwner returns the owning subject's ID, or "" when
// the resource has no owner.
type Resource interface {
	ResolveOwner(ctx context.Context) (string, error)
}

// ResourceFunc adapts a function to Resource.
type ResourceFunc func(ctx context.Context) (string, error)

// ResolveOwner calls f.
func (f ResourceFunc) ResolveOwner(ctx context.Context) (string, error) {
	return f(ctx)
}

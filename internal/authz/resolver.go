package authz

import "github.com/spec-kit/identity-service/internal/domain"

// HasActiveProfile reports whether subject holds a profile of profileType in
// ACTIVE status.
func HasActiveProfile(subject Subject, profileType domain.ProfileType) bool {
	for _, p := range subject.Profiles {
		if p.Type == profileType && p.Status == domain.ProfileStatusActive {
			return true
		}
	}
	return false
}

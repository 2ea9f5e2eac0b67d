// Package repotest provides an in-process verification code store for tests
// above the repository layer.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
)

var _ repository.VerificationCodeRepository = (*CodeStore)(nil)

type codeKey struct {
	subject string
	code    string
}

// CodeStore mirrors the Postgres store's semantics behind one mutex, and adds
// the lookups tests use to inspect what is live.
type CodeStore struct {
	mu    sync.Mutex
	codes map[codeKey]domain.VerificationCode
}

func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[codeKey]domain.VerificationCode)}
}

func (s *CodeStore) ReplaceForSubject(_ context.Context, code *domain.VerificationCode, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, vc := range s.codes {
		if vc.CreatedAt.Before(cutoff) || key.subject == code.SubjectIdentifier {
			delete(s.codes, key)
		}
	}
	s.codes[codeKey{code.SubjectIdentifier, code.Code}] = *code
	return nil
}

func (s *CodeStore) MarkValidated(_ context.Context, subject, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{subject, code}
	vc, ok := s.codes[key]
	if !ok {
		return pgx.ErrNoRows
	}
	vc.Validated = true
	s.codes[key] = vc
	return nil
}

func (s *CodeStore) ConsumeValidated(_ context.Context, subject, code string, notBefore time.Time) (*domain.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{subject, code}
	vc, ok := s.codes[key]
	if !ok || !vc.Validated || vc.CreatedAt.Before(notBefore) {
		return nil, pgx.ErrNoRows
	}
	delete(s.codes, key)
	return &vc, nil
}

func (s *CodeStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, vc := range s.codes {
		if vc.CreatedAt.Before(cutoff) {
			delete(s.codes, key)
			n++
		}
	}
	return n, nil
}

// Lookup returns the stored code, if any.
func (s *CodeStore) Lookup(subject, code string) (domain.VerificationCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vc, ok := s.codes[codeKey{subject, code}]
	return vc, ok
}

// Live returns the codes held by subject, newest first.
func (s *CodeStore) Live(subject string) []domain.VerificationCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.VerificationCode
	for key, vc := range s.codes {
		if key.subject == subject {
			out = append(out, vc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

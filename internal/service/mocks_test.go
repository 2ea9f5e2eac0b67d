package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/identity-service/internal/domain"
)

type mockCodeRepo struct{ mock.Mock }

func (m *mockCodeRepo) ReplaceForSubject(ctx context.Context, code *domain.VerificationCode, cutoff time.Time) error {
	return m.Called(ctx, code, cutoff).Error(0)
}

func (m *mockCodeRepo) MarkValidated(ctx context.Context, subject, code string) error {
	return m.Called(ctx, subject, code).Error(0)
}

func (m *mockCodeRepo) ConsumeValidated(ctx context.Context, subject, code string, notBefore time.Time) (*domain.VerificationCode, error) {
	args := m.Called(ctx, subject, code, notBefore)
	vc, _ := args.Get(0).(*domain.VerificationCode)
	return vc, args.Error(1)
}

func (m *mockCodeRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	return m.Called(ctx, user, profile).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProfileRepo struct{ mock.Mock }

func (m *mockProfileRepo) Create(ctx context.Context, profile *domain.Profile) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *mockProfileRepo) ListByUser(ctx context.Context, userID string) ([]domain.Profile, error) {
	args := m.Called(ctx, userID)
	profiles, _ := args.Get(0).([]domain.Profile)
	return profiles, args.Error(1)
}

func (m *mockProfileRepo) ExistsForEmail(ctx context.Context, email string, profileType domain.ProfileType) (bool, error) {
	args := m.Called(ctx, email, profileType)
	return args.Bool(0), args.Error(1)
}

type sentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{recipient, subject, body})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	code := g.codes[0]
	g.codes = append(g.codes[1:], code)
	return code, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

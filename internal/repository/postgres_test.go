package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/persistence"
)

const codeTTL = 30 * time.Minute

// newTestPool connects to the database named by POSTGRES_TEST_DSN and brings
// its schema up to date. Tests are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pool, err := persistence.OpenPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 8}, "identity-service-test", logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pool, os.DirFS("../../migrations"), logger))
	return pool
}

// testSubject returns a subject no other run shares and removes its codes
// when the test ends.
func testSubject(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	subject := fmt.Sprintf("account_creation:%s@test.invalid", uuid.NewString())
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM verification_codes WHERE subject_identifier=$1`, subject)
	})
	return subject
}

func storedCodes(t *testing.T, pool *pgxpool.Pool, subject string) []string {
	t.Helper()
	rows, err := pool.Query(context.Background(),
		`SELECT code FROM verification_codes WHERE subject_identifier=$1 ORDER BY created_at`, subject)
	require.NoError(t, err)
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		require.NoError(t, rows.Scan(&code))
		codes = append(codes, code)
	}
	require.NoError(t, rows.Err())
	return codes
}

// now is truncated to the microsecond precision timestamptz keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func issue(t *testing.T, repo VerificationCodeRepository, subject, code string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.ReplaceForSubject(context.Background(), &domain.VerificationCode{
		SubjectIdentifier: subject,
		Code:              code,
		CreatedAt:         createdAt,
	}, createdAt.Add(-24*time.Hour)))
}

func TestPostgresCodes_ConsumeValidatedExactlyOnce(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	ctx := context.Background()
	subject := testSubject(t, pool)
	issued := now()

	issue(t, repo, subject, "abcdef", issued)
	require.NoError(t, repo.MarkValidated(ctx, subject, "abcdef"))

	const workers = 24
	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.ConsumeValidated(ctx, subject, "abcdef", issued.Add(-codeTTL))
			switch {
			case err == nil:
				wins.Add(1)
			case IsNotFound(err):
				misses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, workers-1, misses.Load())
	assert.Empty(t, storedCodes(t, pool, subject))
}

func TestPostgresCodes_ConcurrentIssuesLeaveOneLiveCode(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	subject := testSubject(t, pool)
	issued := now()

	const workers = 20
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs <- repo.ReplaceForSubject(context.Background(), &domain.VerificationCode{
				SubjectIdentifier: subject,
				Code:              fmt.Sprintf("code%02d", i),
				CreatedAt:         issued.Add(time.Duration(i) * time.Microsecond),
			}, issued.Add(-codeTTL))
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, storedCodes(t, pool, subject), 1)
}

func TestPostgresCodes_ConsumeRejectsCodesOlderThanTTL(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	ctx := context.Background()
	subject := testSubject(t, pool)
	current := now()

	issue(t, repo, subject, "abcdef", current.Add(-codeTTL-time.Minute))
	require.NoError(t, repo.MarkValidated(ctx, subject, "abcdef"))

	_, err := repo.ConsumeValidated(ctx, subject, "abcdef", current.Add(-codeTTL))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"abcdef"}, storedCodes(t, pool, subject), "a refused redemption deletes nothing")
}

func TestPostgresCodes_ConsumeRequiresValidation(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	ctx := context.Background()
	subject := testSubject(t, pool)
	issued := now()

	issue(t, repo, subject, "abcdef", issued)

	_, err := repo.ConsumeValidated(ctx, subject, "abcdef", issued.Add(-codeTTL))
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(repo.MarkValidated(ctx, subject, "zzzzzz")))

	require.NoError(t, repo.MarkValidated(ctx, subject, "abcdef"))
	vc, err := repo.ConsumeValidated(ctx, subject, "abcdef", issued.Add(-codeTTL))
	require.NoError(t, err)
	assert.Equal(t, subject, vc.SubjectIdentifier)
	assert.True(t, vc.Validated)
	assert.True(t, vc.CreatedAt.Equal(issued))
}

func TestPostgresCodes_IssuePurgesExpiredCodesOfOtherSubjects(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	ctx := context.Background()
	stale := testSubject(t, pool)
	fresh := testSubject(t, pool)
	current := now()

	issue(t, repo, stale, "aaaaaa", current.Add(-codeTTL-time.Minute))
	require.NoError(t, repo.ReplaceForSubject(ctx, &domain.VerificationCode{
		SubjectIdentifier: fresh,
		Code:              "bbbbbb",
		CreatedAt:         current,
	}, current.Add(-codeTTL)))

	assert.Empty(t, storedCodes(t, pool, stale))
	assert.Equal(t, []string{"bbbbbb"}, storedCodes(t, pool, fresh))
}

func TestPostgresCodes_DeleteExpired(t *testing.T) {
	pool := newTestPool(t)
	repo := NewVerificationCodeRepository(pool)
	ctx := context.Background()
	stale := testSubject(t, pool)
	fresh := testSubject(t, pool)
	current := now()

	issue(t, repo, stale, "aaaaaa", current.Add(-codeTTL-time.Minute))
	issue(t, repo, fresh, "bbbbbb", current)

	n, err := repo.DeleteExpired(ctx, current.Add(-codeTTL))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	assert.Empty(t, storedCodes(t, pool, stale))
	assert.Equal(t, []string{"bbbbbb"}, storedCodes(t, pool, fresh))
}

func TestPostgresUsers_CreateWithProfileAndLookups(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	profiles := NewProfileRepository(pool)
	ctx := context.Background()
	email := uuid.NewString() + "@test.invalid"
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE email=$1`, email)
	})

	user := &domain.User{Name: "Ada", Email: email, PasswordHash: "hash", Status: domain.UserStatusActive}
	profile := &domain.Profile{Type: domain.ProfileTypeStudent}
	require.NoError(t, users.CreateWithProfile(ctx, user, profile))
	require.NotEmpty(t, user.ID)
	assert.Equal(t, domain.ProfileStatusActive, profile.Status)

	got, err := users.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	exists, err := profiles.ExistsForEmail(ctx, email, domain.ProfileTypeStudent)
	require.NoError(t, err)
	assert.True(t, exists)

	err = profiles.Create(ctx, &domain.Profile{UserID: user.ID, Type: domain.ProfileTypeStudent})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = users.CreateWithProfile(ctx, &domain.User{Name: "Eve", Email: email, PasswordHash: "hash", Status: domain.UserStatusActive},
		&domain.Profile{Type: domain.ProfileTypeIntern})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = users.GetByID(ctx, "not-a-uuid")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(users.UpdatePassword(ctx, uuid.NewString(), "hash")))
}

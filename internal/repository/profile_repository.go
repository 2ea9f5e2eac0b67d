package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// ProfileRepository gives read access to the profiles a user holds, plus the
// insert used when an existing account gains a new profile.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	ListByUser(ctx context.Context, userID string) ([]domain.Profile, error)
	ExistsForEmail(ctx context.Context, email string, profileType domain.ProfileType) (bool, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	return insertProfile(ctx, r.pool, profile)
}

func (r *profileRepository) ListByUser(ctx context.Context, userID string) ([]domain.Profile, error) {
	const query = `
        SELECT id, user_id, type, status, bio, created_at
        FROM profiles WHERE user_id=$1
        ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Type, &p.Status, &p.Bio, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, mapPgError(rows.Err())
}

func (r *profileRepository) ExistsForEmail(ctx context.Context, email string, profileType domain.ProfileType) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM profiles p JOIN users u ON u.id = p.user_id
            WHERE u.email=$1 AND p.type=$2
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email, profileType).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertProfile(ctx context.Context, q queryRower, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (user_id, type, status, bio)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`

	if profile.Status == "" {
		profile.Status = domain.ProfileStatusActive
	}
	err := q.QueryRow(ctx, query,
		profile.UserID,
		profile.Type,
		profile.Status,
		profile.Bio,
	).Scan(&profile.ID, &profile.CreatedAt)
	return mapPgError(err)
}

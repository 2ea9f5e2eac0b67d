package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// VerificationCodeRepository stores issued verification codes keyed by
// (subject identifier, code). Lookups that match nothing return pgx.ErrNoRows.
type VerificationCodeRepository interface {
	// ReplaceForSubject deletes every code created before cutoff and every
	// code held by code.SubjectIdentifier, then stores code, as one atomic step.
	ReplaceForSubject(ctx context.Context, code *domain.VerificationCode, cutoff time.Time) error
	MarkValidated(ctx context.Context, subject, code string) error
	// ConsumeValidated deletes and returns the validated code created at or
	// after notBefore. Of concurrent callers, exactly one gets the record.
	ConsumeValidated(ctx context.Context, subject, code string, notBefore time.Time) (*domain.VerificationCode, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type verificationCodeRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeRepository returns a Postgres-backed implementation.
func NewVerificationCodeRepository(pool *pgxpool.Pool) VerificationCodeRepository {
	return &verificationCodeRepository{pool: pool}
}

// ReplaceForSubject runs at READ COMMITTED under a per-subject advisory lock,
// so two issuances for the same subject cannot interleave their purge and insert.
func (r *verificationCodeRepository) ReplaceForSubject(ctx context.Context, code *domain.VerificationCode, cutoff time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, code.SubjectIdentifier); err != nil {
		return err
	}

	const purge = `
        DELETE FROM verification_codes
        WHERE created_at < $1 OR subject_identifier = $2`
	if _, err := tx.Exec(ctx, purge, cutoff, code.SubjectIdentifier); err != nil {
		return err
	}

	const insert = `
        INSERT INTO verification_codes (subject_identifier, code, created_at, validated)
        VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, insert,
		code.SubjectIdentifier,
		code.Code,
		code.CreatedAt,
		code.Validated,
	); err != nil {
		return mapPgError(err)
	}

	return tx.Commit(ctx)
}

func (r *verificationCodeRepository) MarkValidated(ctx context.Context, subject, code string) error {
	const query = `
        UPDATE verification_codes SET validated=TRUE
        WHERE subject_identifier=$1 AND code=$2`

	cmd, err := r.pool.Exec(ctx, query, subject, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ConsumeValidated is a single conditional DELETE; the row lock it takes is
// what makes concurrent redemptions exactly-once.
func (r *verificationCodeRepository) ConsumeValidated(ctx context.Context, subject, code string, notBefore time.Time) (*domain.VerificationCode, error) {
	const query = `
        DELETE FROM verification_codes
        WHERE subject_identifier=$1 AND code=$2 AND validated=TRUE AND created_at >= $3
        RETURNING subject_identifier, code, created_at, validated`

	var vc domain.VerificationCode
	if err := r.pool.QueryRow(ctx, query, subject, code, notBefore).Scan(
		&vc.SubjectIdentifier,
		&vc.Code,
		&vc.CreatedAt,
		&vc.Validated,
	); err != nil {
		return nil, err
	}
	return &vc, nil
}

func (r *verificationCodeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM verification_codes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

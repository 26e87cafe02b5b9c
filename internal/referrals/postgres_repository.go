package referrals

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository writes referrals through a pool opened with the service
// credential, bypassing the row-level policies applied to anonymous callers.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("referrals: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q rowQuerier) *PostgresRepository {
	if q == nil {
		panic("referrals: querier required")
	}
	return &PostgresRepository{pool: q}
}

// Insert adds one row in a single statement, so a failure leaves nothing behind.
func (r *PostgresRepository) Insert(ctx context.Context, ref *Referral) (*Referral, error) {
	query := `
		INSERT INTO referrals (
			referrer_name, referrer_email, referrer_phone,
			referral_name, referral_email, referral_phone, referral_linkedin,
			referral_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	var (
		id        string
		createdAt time.Time
	)
	if err := r.pool.QueryRow(ctx, query,
		ref.ReferrerName,
		ref.ReferrerEmail,
		nullIfEmpty(ref.ReferrerPhone),
		ref.ReferralName,
		ref.ReferralEmail,
		ref.ReferralPhone,
		nullIfEmpty(ref.ReferralLinkedin),
		ref.Category,
	).Scan(&id, &createdAt); err != nil {
		return nil, fmt.Errorf("referrals: insert failed: %w", err)
	}

	stored := *ref
	stored.ID = id
	stored.CreatedAt = createdAt
	return &stored, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

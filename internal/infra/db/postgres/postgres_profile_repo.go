package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) PlanForUser(ctx context.Context, tx repository.Tx, userID string) (model.PlanID, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT plan FROM profiles WHERE user_id = $1 LIMIT 1;`, userID)
	if err != nil {
		return "", fmt.Errorf("find profile plan: %w: %w", domain.ErrOperationFailed, err)
	}
	var plan string
	if err := row.Scan(&plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("find profile plan: %w", err)
	}
	return model.PlanID(plan), nil
}

// SetPlan upserts a profile row; used by seeding and tests.
func (r *profileRepo) SetPlan(ctx context.Context, tx repository.Tx, userID string, plan model.PlanID) error {
	const q = `
INSERT INTO profiles (user_id, plan, updated_at) VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = now();`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, string(plan)); err != nil {
		return fmt.Errorf("set profile plan: %w", err)
	}
	return nil
}

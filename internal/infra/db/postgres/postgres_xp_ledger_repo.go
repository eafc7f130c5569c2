package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
)

var _ repository.XPLedgerRepository = (*xpLedgerRepo)(nil)

type xpLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewXPLedgerRepo(pool *pgxpool.Pool) *xpLedgerRepo {
	return &xpLedgerRepo{pool: pool}
}

// LockDay takes a transaction-scoped advisory lock, so tx must be a pgx.Tx.
func (r *xpLedgerRepo) LockDay(ctx context.Context, tx repository.Tx, userID string, dayISO string) error {
	if tx == nil {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1)`, hashToInt64("xp:"+userID+":"+dayISO))
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func (r *xpLedgerRepo) SumBetween(ctx context.Context, tx repository.Tx, userID string, start, end time.Time) (int64, error) {
	const q = `
SELECT COALESCE(SUM(amount), 0)::BIGINT
  FROM xp_events
 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, start.UTC(), end.UTC())
	if err != nil {
		return 0, fmt.Errorf("sum xp events: %w: %w", domain.ErrOperationFailed, err)
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum xp events: %w", err)
	}
	return total, nil
}

func (r *xpLedgerRepo) Insert(ctx context.Context, tx repository.Tx, ev *model.XPEvent) error {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	meta, err := json.Marshal(ev.Meta)
	if err != nil {
		return fmt.Errorf("encode xp meta: %w", err)
	}
	if ev.Meta == nil {
		meta = []byte("{}")
	}
	const q = `
INSERT INTO xp_events (id, user_id, amount, source, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	if _, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.UserID, ev.Amount, ev.Source, meta, ev.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert xp event: %w", err)
	}
	return nil
}

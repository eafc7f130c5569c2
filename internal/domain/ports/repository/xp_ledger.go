package repository

import (
	"context"
	"time"

	"gramorx-entitlements/internal/domain/model"
)

// XPLedgerRepository is the append-only XP event log.
type XPLedgerRepository interface {
	// LockDay serializes awards for one user and day until tx ends.
	LockDay(ctx context.Context, tx Tx, userID string, dayISO string) error
	// SumBetween totals amounts with start <= created_at < end.
	SumBetween(ctx context.Context, tx Tx, userID string, start, end time.Time) (int64, error)
	Insert(ctx context.Context, tx Tx, ev *model.XPEvent) error
}

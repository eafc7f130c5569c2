package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/domain/ports/repository"
)

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// runInTx runs fn inside tm, or directly with NoTX when no manager is wired.
func runInTx(ctx context.Context, tm repository.TransactionManager, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if tm == nil {
		return fn(ctx, repository.NoTX)
	}
	return tm.WithTx(ctx, opts, fn)
}

func orNop(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}

func orNow(c Clock) Clock {
	if c != nil {
		return c
	}
	return time.Now
}

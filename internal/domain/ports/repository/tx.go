package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories must accept NoTX and fall back to their pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction and passes
// the handle on so repository calls share it.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		if err := ledger.LockDay(ctx, tx, userID, day); err != nil {
//			return err
//		}
//		total, err := ledger.SumBetween(ctx, tx, userID, start, end)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

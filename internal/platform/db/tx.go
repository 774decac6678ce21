package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/dal"
)

// Beginner is satisfied by *pgxpool.Pool and pgx.Tx (nested calls become savepoints).
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx runs fn in a transaction. Any error from fn rolls everything back and is
// returned as is; begin and commit failures wrap dal.ErrTransaction.
func InTx(ctx context.Context, db Beginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return dal.TxFailure("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dal.TxFailure("commit", err)
	}
	return nil
}

func InTxResult[T any](ctx context.Context, db Beginner, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var out T
	err := InTx(ctx, db, func(tx pgx.Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

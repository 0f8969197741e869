package postgres

import (
	"context"
	"errors"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/jackc/pgx/v5"
)

// TransactionManager implements domain.TransactionManager using pgx
type TransactionManager struct {
	db DB
}

func NewTransactionManager(db DB) domain.TransactionManager {
	return &TransactionManager{db: db}
}

// Do runs fn inside a transaction. Nested calls join the outer transaction.
func (tm *TransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := tm.db.Begin(ctx)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.WithContext(ctx).Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	return tx.Commit(ctx)
}

type txKey struct{}

// conn returns the transaction carried by ctx, or db.
func conn(ctx context.Context, db DB) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

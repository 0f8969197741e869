package postgres

import (
	"context"
	"errors"
	"fmt"

	"orderdesk-backend/pkg/logger"

	"github.com/jackc/pgx/v5"
)

// OrderLocker takes a transaction-scoped advisory lock keyed by order id. The
// lock transaction stays open until release, so a second API instance waits for
// the whole read, courier call and write of the first.
type OrderLocker struct {
	db DB
}

func NewOrderLocker(db DB) *OrderLocker {
	return &OrderLocker{db: db}
}

func (l *OrderLocker) LockOrder(ctx context.Context, orderID string) (func(), error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orderID); err != nil {
		rollback(ctx, tx, orderID)
		return nil, fmt.Errorf("failed to lock order %s: %w", orderID, err)
	}
	return func() { rollback(ctx, tx, orderID) }, nil
}

// rollback ends the lock transaction, which releases the advisory lock.
func rollback(ctx context.Context, tx pgx.Tx, orderID string) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.WithContext(ctx).Error().Err(err).Str("order_id", orderID).Msg("order lock release failed")
	}
}

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLocker_HoldsAdvisoryLockUntilRelease(t *testing.T) {
	mock := newMockPool(t)
	locker := NewOrderLocker(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(hashtext\\(\\$1\\)\\)").
		WithArgs("order-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	release, err := locker.LockOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "lock is taken before release")

	mock.ExpectRollback()
	release()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderLocker_LockErrorEndsTransaction(t *testing.T) {
	mock := newMockPool(t)
	locker := NewOrderLocker(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("order-1").
		WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	release, err := locker.LockOrder(context.Background(), "order-1")
	assert.ErrorContains(t, err, "failed to lock order order-1")
	assert.Nil(t, release)
	assert.NoError(t, mock.ExpectationsWereMet())
}

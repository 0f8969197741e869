package postgres

import (
	"context"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rateCols = []string{"id", "province", "label", "cost", "free_shipping_threshold", "is_active", "created_at", "updated_at"}

func TestConfigRepository_GetShippingRateByProvince(t *testing.T) {
	mock := newMockPool(t)
	repo := NewConfigRepository(mock)
	now := time.Now()

	mock.ExpectQuery("FROM shipping_rates WHERE LOWER").
		WithArgs("dhaka").
		WillReturnRows(pgxmock.NewRows(rateCols).AddRow(int32(1), "Dhaka", "Inside Dhaka", 60.0, domain.Ptr(3000.0), true, now, now))

	rate, err := repo.GetShippingRateByProvince(context.Background(), "  Dhaka ")
	require.NoError(t, err)
	assert.Equal(t, 60.0, rate.Cost)
	assert.Equal(t, 3000.0, *rate.FreeShippingThreshold)

	mock.ExpectQuery("FROM shipping_rates WHERE LOWER").
		WithArgs("sylhet").
		WillReturnRows(pgxmock.NewRows(rateCols))
	_, err = repo.GetShippingRateByProvince(context.Background(), "Sylhet")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfigRepository_CreateDuplicateProvince(t *testing.T) {
	mock := newMockPool(t)
	repo := NewConfigRepository(mock)

	mock.ExpectQuery("INSERT INTO shipping_rates").WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateShippingRate(context.Background(), &domain.ShippingRate{Province: "Dhaka", Cost: 60, IsActive: true})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestConfigRepository_DeleteMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewConfigRepository(mock)

	mock.ExpectExec("DELETE FROM shipping_rates").WithArgs(int32(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteShippingRate(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRiderRepository_List(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRiderRepository(mock)
	now := time.Now()

	mock.ExpectQuery("FROM riders").
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "is_active", "created_at"}).
			AddRow("r1", "Karim", "01711111111", true, now))

	riders, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, "Karim", riders[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package usecase

import (
	"context"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/infrastructure/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsUsecase_DispatchSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seedOrder(t, nil) // pending backlog
	h.seedOrder(t, func(o *domain.Order) { o.Status = domain.OrderStatusProcessing })
	dispatched := h.seedOrder(t, nil)
	_, err := h.dispatch.DispatchExternal(ctx, dispatched.ID, dhakaDispatch(), "op")
	require.NoError(t, err)
	h.seedOrder(t, func(o *domain.Order) {
		o.Status = domain.OrderStatusShipped
		o.DeliveryType = domain.DeliveryTypeInternal
		o.RiderID = domain.Ptr("rider-1")
		o.PaymentStatus = domain.PaymentStatusPaid
	})

	uc := NewStatsUsecase(h.orders, cache.NewMemoryCache(time.Minute, time.Minute))
	now := time.Now()
	summary, err := uc.DispatchSummary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Orders)
	assert.Equal(t, int64(2), summary.Backlog)
	assert.Equal(t, int64(1), summary.ByStatus[domain.OrderStatusReadyToShip])
	assert.Equal(t, int64(1), summary.ByDeliveryType[domain.DeliveryTypeExternal])
	assert.Equal(t, int64(2), summary.ByDeliveryType[domain.DeliveryTypeUnassigned])
	// Only the unpaid COD consignment counts; the rider's order is already paid.
	assert.Equal(t, 2650.0, summary.CashInField)
}

func TestStatsUsecase_RangeValidation(t *testing.T) {
	uc := NewStatsUsecase(newHarness(t).orders, cache.NewMemoryCache(time.Minute, time.Minute))
	now := time.Now()

	_, err := uc.DispatchSummary(context.Background(), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.DispatchSummary(context.Background(), now.AddDate(-2, 0, 0), now)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type countingStats struct {
	calls int
}

func (c *countingStats) DispatchBuckets(context.Context, time.Time, time.Time) ([]domain.DispatchBucket, error) {
	c.calls++
	return []domain.DispatchBucket{{Status: domain.OrderStatusShipped, DeliveryType: domain.DeliveryTypeExternal, Orders: 2, CashInField: 100.1}}, nil
}

func TestStatsUsecase_Cached(t *testing.T) {
	repo := &countingStats{}
	uc := NewStatsUsecase(repo, cache.NewMemoryCache(time.Minute, time.Minute))
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	first, err := uc.DispatchSummary(context.Background(), from, to)
	require.NoError(t, err)
	second, err := uc.DispatchSummary(context.Background(), from, to)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 100.1, first.CashInField)
}

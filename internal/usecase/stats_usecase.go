package usecase

import (
	"context"
	"fmt"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/cache"

	"github.com/shopspring/decimal"
)

const (
	statsMaxRange = 365 * 24 * time.Hour
	statsCacheTTL = time.Minute
)

// StatsUsecase builds the dispatch dashboard. Results are cached briefly per range.
type StatsUsecase struct {
	repo  domain.StatsRepository
	cache cache.CacheService
}

func NewStatsUsecase(repo domain.StatsRepository, cache cache.CacheService) *StatsUsecase {
	return &StatsUsecase{repo: repo, cache: cache}
}

// DispatchSummary covers orders created in [from, to).
func (uc *StatsUsecase) DispatchSummary(ctx context.Context, from, to time.Time) (*domain.DispatchSummary, error) {
	if !to.After(from) {
		return nil, domain.NewError(domain.KindInvalidInput, "end date must be after start date", nil)
	}
	if to.Sub(from) > statsMaxRange {
		return nil, domain.NewError(domain.KindInvalidInput, "date range cannot exceed 1 year", nil)
	}

	cacheKey := fmt.Sprintf("stats:dispatch:%d:%d", from.Unix(), to.Unix())
	if summary, found := cache.GetAs[*domain.DispatchSummary](uc.cache, cacheKey); found {
		return summary, nil
	}

	buckets, err := uc.repo.DispatchBuckets(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &domain.DispatchSummary{
		From:           from,
		To:             to,
		ByStatus:       make(map[domain.OrderStatus]int64),
		ByDeliveryType: make(map[domain.DeliveryType]int64),
	}
	cash := decimal.Zero
	for _, b := range buckets {
		summary.Orders += b.Orders
		summary.ByStatus[b.Status] += b.Orders
		summary.ByDeliveryType[b.DeliveryType] += b.Orders
		if b.DeliveryType == domain.DeliveryTypeUnassigned &&
			(b.Status == domain.OrderStatusPending || b.Status == domain.OrderStatusProcessing) {
			summary.Backlog += b.Orders
		}
		cash = cash.Add(decimal.NewFromFloat(b.CashInField))
	}
	summary.CashInField = cash.Round(2).InexactFloat64()

	uc.cache.Set(cacheKey, summary, statsCacheTTL)
	return summary, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"orderdesk-backend/internal/domain"
)

type statsRepository struct {
	db DB
}

func NewStatsRepository(db DB) domain.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) DispatchBuckets(ctx context.Context, from, to time.Time) ([]domain.DispatchBucket, error) {
	const q = `
		SELECT status, delivery_type, COUNT(*),
			COALESCE(SUM(total_amount) FILTER (
				WHERE payment_method = 'cod' AND payment_status <> 'paid'
				AND status IN ('ready_to_ship', 'shipped')
			), 0)::float8
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status, delivery_type
		ORDER BY status, delivery_type`

	rows, err := conn(ctx, r.db).Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("dispatch buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.DispatchBucket
	for rows.Next() {
		var b domain.DispatchBucket
		var status, deliveryType string
		if err := rows.Scan(&status, &deliveryType, &b.Orders, &b.CashInField); err != nil {
			return nil, fmt.Errorf("scan dispatch bucket: %w", err)
		}
		b.Status = domain.OrderStatus(status)
		b.DeliveryType = domain.DeliveryType(deliveryType)
		out = append(out, b)
	}
	return out, rows.Err()
}

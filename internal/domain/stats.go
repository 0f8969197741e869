package domain

import (
	"context"
	"time"
)

// DispatchBucket is one (status, delivery type) group of orders created in a range.
type DispatchBucket struct {
	Status       OrderStatus
	DeliveryType DeliveryType
	Orders       int64
	// CashInField is the unpaid COD total of orders out with a rider or courier.
	CashInField float64
}

// DispatchSummary is the operator dashboard view over a date range.
type DispatchSummary struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	Orders         int64                  `json:"orders"`
	ByStatus       map[OrderStatus]int64  `json:"byStatus"`
	ByDeliveryType map[DeliveryType]int64 `json:"byDeliveryType"`
	Backlog        int64                  `json:"backlog"` // pending or processing, still unassigned
	CashInField    float64                `json:"cashInField"`
}

type StatsRepository interface {
	DispatchBuckets(ctx context.Context, from, to time.Time) ([]DispatchBucket, error)
}

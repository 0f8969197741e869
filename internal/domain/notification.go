package domain

import (
	"context"
	"time"
)

// StatusEvent is emitted on every order status transition.
type StatusEvent struct {
	OrderID        string      `json:"orderId"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	NewStatus      OrderStatus `json:"newStatus"`
	TrackingCode   *string     `json:"trackingCode,omitempty"`
	Courier        *string     `json:"courier,omitempty"`
	CustomerName   string      `json:"customerName"`
	CustomerPhone  string      `json:"customerPhone,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

// Notifier receives status events. Delivery is best-effort: an error is logged
// by the caller and never undoes the transition.
type Notifier interface {
	Notify(ctx context.Context, event StatusEvent) error
}

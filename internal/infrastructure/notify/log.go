package notify

import (
	"context"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
)

// LogNotifier writes status events to the log. Used when no broker is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Notify(ctx context.Context, event domain.StatusEvent) error {
	e := logger.WithContext(ctx).Info().
		Str("order_id", event.OrderID).
		Str("from", string(event.PreviousStatus)).
		Str("to", string(event.NewStatus)).
		Str("customer", event.CustomerName)
	if event.TrackingCode != nil {
		e = e.Str("tracking_code", *event.TrackingCode)
	}
	if event.Courier != nil {
		e = e.Str("courier", *event.Courier)
	}
	e.Msg("order status changed")
	return nil
}

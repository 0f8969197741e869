package usecase

import (
	"context"
	"fmt"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
)

// PaymentUsecase applies payment-status changes and owns the COD rules.
type PaymentUsecase struct {
	writer   *OrderWriter
	reversal *ReversalUsecase
}

func NewPaymentUsecase(writer *OrderWriter, reversal *ReversalUsecase) *PaymentUsecase {
	return &PaymentUsecase{
		writer:   writer,
		reversal: reversal,
	}
}

// RefundResult is the refunded order plus any reversal warning.
type RefundResult struct {
	Order   *domain.Order         `json:"order"`
	Warning *domain.DispatchError `json:"-"`
}

// UpdatePaymentStatus is the operator path. Refunded goes through Refund so the
// order is cancelled along with it.
func (u *PaymentUsecase) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, actorID string) (*domain.Order, error) {
	if status == domain.PaymentStatusRefunded {
		res, err := u.Refund(ctx, orderID, "", actorID)
		if err != nil {
			return nil, err
		}
		return res.Order, nil
	}
	return u.applyPaymentStatus(ctx, orderID, status, "Admin", actorID)
}

// HandleGatewayCallback trusts only the reported status value. Gateways may
// report unpaid, failed or paid; anything else is rejected.
func (u *PaymentUsecase) HandleGatewayCallback(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error) {
	switch status {
	case domain.PaymentStatusUnpaid, domain.PaymentStatusFailed, domain.PaymentStatusPaid:
	default:
		return nil, domain.NewError(domain.KindInvalidInput,
			fmt.Sprintf("gateway cannot report payment status '%s'", status), nil)
	}
	return u.applyPaymentStatus(ctx, orderID, status, "Gateway", "")
}

func (u *PaymentUsecase) applyPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, source, actorID string) (*domain.Order, error) {
	var previous domain.PaymentStatus
	order, err := u.writer.Mutate(ctx, orderID, actorID, func(_ context.Context, order *domain.Order) (*Change, error) {
		if order.PaymentStatus == status {
			return nil, nil
		}
		if err := domain.ValidatePaymentTransition(order.PaymentStatus, status); err != nil {
			return nil, err
		}
		previous = order.PaymentStatus
		order.PaymentStatus = status
		return &Change{Reason: fmt.Sprintf("%s: Payment status changed: %s -> %s", source, previous, status)}, nil
	})
	if err != nil {
		return nil, err
	}
	if previous != "" {
		logger.WithContext(ctx).Info().
			Str("order_id", orderID).
			Str("from", string(previous)).
			Str("to", string(status)).
			Str("source", source).
			Msg("payment status updated")
	}
	return order, nil
}

// Refund moves a paid order to refunded and cancels it, reversing any
// assignment first. A returned order keeps its status and assignment.
func (u *PaymentUsecase) Refund(ctx context.Context, orderID, note, actorID string) (*RefundResult, error) {
	var rev *reversal
	order, err := u.writer.Mutate(ctx, orderID, actorID, func(ctx context.Context, order *domain.Order) (*Change, error) {
		if err := domain.ValidatePaymentTransition(order.PaymentStatus, domain.PaymentStatusRefunded); err != nil {
			return nil, err
		}

		if order.IsAssigned() && !order.Status.IsTerminal() {
			r, err := u.reversal.reverse(ctx, order)
			if err != nil {
				return nil, err
			}
			rev = r
		}

		order.PaymentStatus = domain.PaymentStatusRefunded
		if order.Status != domain.OrderStatusReturned {
			markCancelled(order)
		}

		reason := "Refunded"
		if note != "" {
			reason += ": " + note
		}
		if rev != nil {
			reason += "; " + rev.reason()
		}
		return &Change{Reason: reason}, nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.ForOrder(ctx, orderID)
	log.Info().Str("status", string(order.Status)).Msg("order refunded")
	result := &RefundResult{Order: order}
	if rev != nil {
		u.reversal.afterReverse(ctx, orderID, actorID, rev)
		result.Warning = rev.warning
	}
	return result, nil
}

// SwitchToCOD is the only payment-method change allowed, and only before capture.
func (u *PaymentUsecase) SwitchToCOD(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	return u.writer.Mutate(ctx, orderID, actorID, func(_ context.Context, order *domain.Order) (*Change, error) {
		if order.PaymentMethod == domain.PaymentMethodCOD {
			return nil, nil
		}
		if order.PaymentStatus == domain.PaymentStatusPaid || order.PaymentStatus == domain.PaymentStatusRefunded {
			return nil, domain.NewError(domain.KindInvalidTransition,
				fmt.Sprintf("cannot switch a %s order to cash on delivery", order.PaymentStatus), nil)
		}
		if order.Status.IsTerminal() || order.Status == domain.OrderStatusDelivered {
			return nil, domain.NewError(domain.KindInvalidTransition,
				fmt.Sprintf("cannot switch payment method of a %s order", order.Status), nil)
		}
		if order.HasRemoteDispatch() {
			// The consignment was created with the old collect amount.
			return nil, domain.NewError(domain.KindInvalidTransition,
				"cancel the courier assignment before switching to cash on delivery", nil)
		}
		previous := order.PaymentMethod
		order.PaymentMethod = domain.PaymentMethodCOD
		if order.PaymentStatus == domain.PaymentStatusFailed {
			order.PaymentStatus = domain.PaymentStatusUnpaid
		}
		return &Change{Reason: fmt.Sprintf("Payment method switched from %s to cod", previous)}, nil
	})
}

// CashToCollect returns what the delivery agent must collect for the order.
func (u *PaymentUsecase) CashToCollect(ctx context.Context, orderID string) (float64, error) {
	order, err := u.writer.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return order.AmountToCollect(), nil
}

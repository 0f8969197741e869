package domain

import "fmt"

// fulfilmentRank orders the forward path. Cancelled and returned sit outside it.
var fulfilmentRank = map[OrderStatus]int{
	OrderStatusPending:     10,
	OrderStatusProcessing:  20,
	OrderStatusReadyToShip: 30,
	OrderStatusShipped:     40,
	OrderStatusDelivered:   50,
}

// IsTerminal reports whether no further fulfilment transition exists.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// IsCancellable reports whether an operator may cancel from this status.
func (s OrderStatus) IsCancellable() bool {
	_, onPath := fulfilmentRank[s]
	return onPath
}

// After reports whether s is strictly further along the forward path than other.
func (s OrderStatus) After(other OrderStatus) bool {
	a, okA := fulfilmentRank[s]
	b, okB := fulfilmentRank[other]
	return okA && okB && a > b
}

// CanTransition implements the forward-only lifecycle:
// pending -> processing -> ready_to_ship -> shipped -> delivered, forward jumps allowed,
// cancelled from any non-terminal state, returned only from delivered.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case OrderStatusCancelled:
		return from.IsCancellable()
	case OrderStatusReturned:
		return from == OrderStatusDelivered
	}
	return to.After(from)
}

// ValidateTransition wraps CanTransition in an InvalidTransition error.
func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return NewError(KindInvalidTransition,
			fmt.Sprintf("cannot move order from '%s' to '%s'", from, to), nil)
	}
	return nil
}

// CanTransitionPayment: unpaid <-> failed, unpaid/failed -> paid, paid -> refunded.
func CanTransitionPayment(from, to PaymentStatus) bool {
	switch from {
	case PaymentStatusUnpaid:
		return to == PaymentStatusFailed || to == PaymentStatusPaid
	case PaymentStatusFailed:
		return to == PaymentStatusUnpaid || to == PaymentStatusPaid
	case PaymentStatusPaid:
		return to == PaymentStatusRefunded
	}
	return false
}

func ValidatePaymentTransition(from, to PaymentStatus) error {
	if !CanTransitionPayment(from, to) {
		return NewError(KindInvalidTransition,
			fmt.Sprintf("cannot move payment from '%s' to '%s'", from, to), nil)
	}
	return nil
}

package domain

import "fmt"

// OrderStatus is the fulfilment lifecycle of an order.
type OrderStatus string

// Order Statuses
const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusProcessing  OrderStatus = "processing"
	OrderStatusReadyToShip OrderStatus = "ready_to_ship"
	OrderStatusShipped     OrderStatus = "shipped"
	OrderStatusDelivered   OrderStatus = "delivered"
	OrderStatusCancelled   OrderStatus = "cancelled"
	OrderStatusReturned    OrderStatus = "returned"
)

// PaymentStatus moves independently of OrderStatus.
type PaymentStatus string

// Payment Statuses
const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod is fixed at checkout. The only allowed change is a switch to COD.
type PaymentMethod string

// Payment Methods
const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodKhalti PaymentMethod = "khalti"
)

// DeliveryType records how an order is currently being delivered.
type DeliveryType string

const (
	DeliveryTypeUnassigned DeliveryType = "unassigned"
	DeliveryTypeInternal   DeliveryType = "internal"
	DeliveryTypeExternal   DeliveryType = "external"
)

// DeliveryMethod is what an operator (or the customer at checkout) asks for.
type DeliveryMethod string

const (
	DeliveryMethodRider    DeliveryMethod = "rider"
	DeliveryMethodExternal DeliveryMethod = "external"
)

// List Exports for API
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusReadyToShip,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

var PaymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

var PaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodEsewa,
	PaymentMethodKhalti,
}

var DeliveryMethods = []DeliveryMethod{
	DeliveryMethodRider,
	DeliveryMethodExternal,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, v := range OrderStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", NewError(KindInvalidInput, fmt.Sprintf("unknown order status %q", s), nil)
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for _, v := range PaymentStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", NewError(KindInvalidInput, fmt.Sprintf("unknown payment status %q", s), nil)
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, v := range PaymentMethods {
		if string(v) == s {
			return v, nil
		}
	}
	return "", NewError(KindInvalidInput, fmt.Sprintf("unknown payment method %q", s), nil)
}

func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	for _, v := range DeliveryMethods {
		if string(v) == s {
			return v, nil
		}
	}
	return "", NewError(KindInvalidInput, fmt.Sprintf("unknown delivery method %q", s), nil)
}

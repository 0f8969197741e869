package domain

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type OrderFilter struct {
	Page          int
	Limit         int
	Status        OrderStatus
	PaymentStatus PaymentStatus
	DeliveryType  DeliveryType
	RiderID       string
	UserID        string
	Search        string
}

// ShippingAddress is the destination snapshot taken at checkout.
// A consignment is created against it, so it never changes after placement.
type ShippingAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	Ward     string `json:"ward,omitempty"`
	City     string `json:"city"`
	District string `json:"district"`
	Province string `json:"province"`
}

func (a ShippingAddress) Validate() error {
	fields := []struct{ name, value string }{
		{"name", a.Name},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"district", a.District},
		{"province", a.Province},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return NewError(KindInvalidInput, "shipping address is missing: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// OneLine renders the address the way couriers expect it in a single field.
func (a ShippingAddress) OneLine() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.Ward, a.City, a.District, a.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ShippingAddress) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, a)
}

// --- Order Entities ---

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CustomerName    string          `json:"customerName"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	DeliveryMethod  DeliveryMethod  `json:"deliveryMethod"` // pricing scheme picked at checkout
	DeliveryType    DeliveryType    `json:"deliveryType"`
	RiderID         *string         `json:"riderId"`
	Courier         *string         `json:"courier"`
	TrackingCode    *string         `json:"trackingCode"`
	CourierCityID   *int64          `json:"courierCityId"`
	CourierZoneID   *int64          `json:"courierZoneId"`
	CourierAreaID   *int64          `json:"courierAreaId"`
	SubTotal        float64         `json:"subTotal"`
	ShippingCost    float64         `json:"shippingCost"`
	Discount        float64         `json:"discount"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
	Revision        int64           `json:"revision"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ID         string   `json:"id"`
	OrderID    string   `json:"orderId"`
	ProductID  string   `json:"productId"`
	VariantID  *string  `json:"variantId"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	Price      float64  `json:"price"`      // Price at time of purchase
	UnitWeight *float64 `json:"unitWeight"` // kg, nil when the catalog had none
}

// ComputeTotal returns subTotal + shippingCost - discount, never below zero.
func ComputeTotal(subTotal, shippingCost, discount float64) float64 {
	total := decimal.NewFromFloat(subTotal).
		Add(decimal.NewFromFloat(shippingCost)).
		Sub(decimal.NewFromFloat(discount))
	if total.IsNegative() {
		return 0
	}
	return total.Round(2).InexactFloat64()
}

// SumItems adds quantity * captured price across the line items.
func SumItems(items []OrderItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// RecalculateTotal restores the total invariant after shipping or discount changed.
func (o *Order) RecalculateTotal() {
	o.TotalAmount = ComputeTotal(o.SubTotal, o.ShippingCost, o.Discount)
}

func (o *Order) IsAssigned() bool {
	return o.DeliveryType != DeliveryTypeUnassigned
}

// HasRemoteDispatch is true when a consignment exists at the courier and must be
// cancelled there, not only locally.
func (o *Order) HasRemoteDispatch() bool {
	return o.DeliveryType == DeliveryTypeExternal && o.TrackingCode != nil && *o.TrackingCode != ""
}

// AmountToCollect is the cash the delivery agent collects at drop-off:
// round(totalAmount) for unpaid COD orders, zero otherwise.
func (o *Order) AmountToCollect() float64 {
	if o.PaymentMethod != PaymentMethodCOD || o.PaymentStatus == PaymentStatusPaid {
		return 0
	}
	return decimal.NewFromFloat(o.TotalAmount).Round(0).InexactFloat64()
}

// ClearAssignment resets every assignment field to the unassigned state.
func (o *Order) ClearAssignment() {
	o.DeliveryType = DeliveryTypeUnassigned
	o.RiderID = nil
	o.Courier = nil
	o.TrackingCode = nil
	o.CourierCityID = nil
	o.CourierZoneID = nil
	o.CourierAreaID = nil
}

// Clone returns a deep copy so a persisted snapshot can't be mutated through a caller.
func (o *Order) Clone() *Order {
	c := *o
	c.RiderID = clonePtr(o.RiderID)
	c.Courier = clonePtr(o.Courier)
	c.TrackingCode = clonePtr(o.TrackingCode)
	c.CourierCityID = clonePtr(o.CourierCityID)
	c.CourierZoneID = clonePtr(o.CourierZoneID)
	c.CourierAreaID = clonePtr(o.CourierAreaID)
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i, it := range o.Items {
			it.VariantID = clonePtr(it.VariantID)
			it.UnitWeight = clonePtr(it.UnitWeight)
			c.Items[i] = it
		}
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a small helper for optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// --- Interfaces ---

type OrderHistory struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	PreviousStatus *string   `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Reason         *string   `json:"reason"`
	CreatedBy      *string   `json:"createdBy"` // UserID
	CreatedAt      time.Time `json:"createdAt"`
}

// OrderRepository persists the Order aggregate.
// Update is a compare-and-swap: it succeeds only when the stored revision equals
// expectedRevision, then stores order with revision+1 and sets order.Revision.
// A lost race returns ErrStaleRevision; an unknown id returns ErrNotFound.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetAll(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	Update(ctx context.Context, order *Order, expectedRevision int64) error
	CountActiveForRider(ctx context.Context, riderID string) (int, error)

	CreateOrderHistory(ctx context.Context, history *OrderHistory) error
	GetOrderHistory(ctx context.Context, orderID string) ([]OrderHistory, error)
}

type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderLocker serialises writers of one order across processes. The returned
// func releases the lock.
type OrderLocker interface {
	LockOrder(ctx context.Context, orderID string) (func(), error)
}

package domain

import (
	"context"
	"time"
)

// Coverage taxonomy mirrored from the courier provider: City > Zone > Area.

type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Zone struct {
	ID     int64  `json:"id"`
	CityID int64  `json:"cityId"`
	Name   string `json:"name"`
}

type Area struct {
	ID                    int64  `json:"id"`
	ZoneID                int64  `json:"zoneId"`
	Name                  string `json:"name"`
	HomeDeliveryAvailable bool   `json:"homeDeliveryAvailable"`
}

// LocationMatch is a fully resolved courier destination.
type LocationMatch struct {
	City City  `json:"city"`
	Zone Zone  `json:"zone"`
	Area *Area `json:"area,omitempty"`
}

type PriceQuoteRequest struct {
	CityID          int64
	ZoneID          int64
	Weight          float64 // kg
	AmountToCollect float64
}

type PriceQuote struct {
	Price         float64 `json:"price"`
	Discount      float64 `json:"discount"`
	CODPercentage float64 `json:"codPercentage"`
	FinalPrice    float64 `json:"finalPrice"`
}

// ConsignmentRequest is what the coordinator hands the courier gateway.
// MerchantOrderID is the local order id, used for de-duplication.
type ConsignmentRequest struct {
	MerchantOrderID  string  `json:"merchantOrderId"`
	RecipientName    string  `json:"recipientName"`
	RecipientPhone   string  `json:"recipientPhone"`
	RecipientAddress string  `json:"recipientAddress"`
	CityID           int64   `json:"cityId"`
	ZoneID           int64   `json:"zoneId"`
	AreaID           int64   `json:"areaId"`
	Weight           float64 `json:"weight"`
	ItemQuantity     int     `json:"itemQuantity"`
	AmountToCollect  float64 `json:"amountToCollect"`
	Description      string  `json:"description,omitempty"`
	Instruction      string  `json:"instruction,omitempty"`
}

type Consignment struct {
	TrackingCode    string  `json:"trackingCode"`
	MerchantOrderID string  `json:"merchantOrderId"`
	Status          string  `json:"status"`
	DeliveryFee     float64 `json:"deliveryFee"`
}

// ProviderStatus is the courier's view of a consignment, normalised.
type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusPickedUp  ProviderStatus = "picked_up"
	ProviderStatusInTransit ProviderStatus = "in_transit"
	ProviderStatusDelivered ProviderStatus = "delivered"
	ProviderStatusReturned  ProviderStatus = "returned"
	ProviderStatusCancelled ProviderStatus = "cancelled"
	ProviderStatusUnknown   ProviderStatus = "unknown"
)

// OrderStatus maps a provider status onto the local lifecycle.
// The boolean is false when the provider status implies no local change.
func (s ProviderStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case ProviderStatusPickedUp, ProviderStatusInTransit:
		return OrderStatusShipped, true
	case ProviderStatusDelivered:
		return OrderStatusDelivered, true
	case ProviderStatusReturned:
		return OrderStatusReturned, true
	}
	return "", false
}

// CourierGateway is the stable local face of the third-party logistics API.
// Errors are DispatchErrors of kind courier_unavailable or courier_rejected;
// CancelConsignment additionally reports ErrConsignmentPickedUp.
type CourierGateway interface {
	Name() string
	ListCities(ctx context.Context) ([]City, error)
	ListZones(ctx context.Context, cityID int64) ([]Zone, error)
	ListAreas(ctx context.Context, zoneID int64) ([]Area, error)
	QuotePrice(ctx context.Context, req PriceQuoteRequest) (*PriceQuote, error)
	CreateConsignment(ctx context.Context, req ConsignmentRequest) (*Consignment, error)
	CancelConsignment(ctx context.Context, trackingCode string) error
	GetStatus(ctx context.Context, trackingCode string) (ProviderStatus, error)
}

// ConsignmentReceipt is an audit copy of a courier interaction.
type ConsignmentReceipt struct {
	OrderID      string              `json:"orderId"`
	Action       string              `json:"action"` // create | cancel
	Courier      string              `json:"courier"`
	TrackingCode string              `json:"trackingCode"`
	Request      *ConsignmentRequest `json:"request,omitempty"`
	Warning      string              `json:"warning,omitempty"`
	ActorID      string              `json:"actorId"`
	RecordedAt   time.Time           `json:"recordedAt"`
}

type ConsignmentArchive interface {
	Store(ctx context.Context, receipt ConsignmentReceipt) error
}

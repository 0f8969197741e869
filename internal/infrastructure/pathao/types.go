package pathao

import (
	"strings"

	"orderdesk-backend/internal/domain"
)

// Provider constants for a regular parcel with normal delivery.
const (
	deliveryTypeNormal = 48
	itemTypeParcel     = 2
)

type envelope[T any] struct {
	Message string              `json:"message"`
	Type    string              `json:"type"`
	Code    int                 `json:"code"`
	Data    T                   `json:"data"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type listData[T any] struct {
	Data []T `json:"data"`
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type cityDTO struct {
	CityID   int64  `json:"city_id"`
	CityName string `json:"city_name"`
}

type zoneDTO struct {
	ZoneID   int64  `json:"zone_id"`
	ZoneName string `json:"zone_name"`
}

type areaDTO struct {
	AreaID                int64  `json:"area_id"`
	AreaName              string `json:"area_name"`
	HomeDeliveryAvailable bool   `json:"home_delivery_available"`
}

type pricePlanRequest struct {
	StoreID       int64   `json:"store_id"`
	ItemType      int     `json:"item_type"`
	DeliveryType  int     `json:"delivery_type"`
	ItemWeight    float64 `json:"item_weight"`
	RecipientCity int64   `json:"recipient_city"`
	RecipientZone int64   `json:"recipient_zone"`
}

type pricePlanResponse struct {
	Price         float64 `json:"price"`
	Discount      float64 `json:"discount"`
	PromoDiscount float64 `json:"promo_discount"`
	CODEnabled    int     `json:"cod_enabled"`
	CODPercentage float64 `json:"cod_percentage"`
	FinalPrice    float64 `json:"final_price"`
}

type createOrderRequest struct {
	StoreID            int64   `json:"store_id"`
	MerchantOrderID    string  `json:"merchant_order_id"`
	RecipientName      string  `json:"recipient_name"`
	RecipientPhone     string  `json:"recipient_phone"`
	RecipientAddress   string  `json:"recipient_address"`
	RecipientCity      int64   `json:"recipient_city"`
	RecipientZone      int64   `json:"recipient_zone"`
	RecipientArea      int64   `json:"recipient_area"`
	DeliveryType       int     `json:"delivery_type"`
	ItemType           int     `json:"item_type"`
	SpecialInstruction string  `json:"special_instruction,omitempty"`
	ItemQuantity       int     `json:"item_quantity"`
	ItemWeight         float64 `json:"item_weight"`
	AmountToCollect    float64 `json:"amount_to_collect"`
	ItemDescription    string  `json:"item_description,omitempty"`
}

type createOrderResponse struct {
	ConsignmentID   string  `json:"consignment_id"`
	MerchantOrderID string  `json:"merchant_order_id"`
	OrderStatus     string  `json:"order_status"`
	DeliveryFee     float64 `json:"delivery_fee"`
}

type orderInfoResponse struct {
	ConsignmentID   string `json:"consignment_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	OrderStatus     string `json:"order_status"`
	OrderStatusSlug string `json:"order_status_slug"`
}

// normalizeStatus maps the provider's status slugs onto ProviderStatus.
func normalizeStatus(slug string) domain.ProviderStatus {
	s := strings.ToLower(strings.TrimSpace(slug))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "pending", "pickup_requested", "assigned_for_pickup", "pickup_pending":
		return domain.ProviderStatusPending
	case "picked", "picked_up", "at_the_sorting_hub":
		return domain.ProviderStatusPickedUp
	case "in_transit", "received_at_last_mile_hub", "assigned_for_delivery", "on_hold":
		return domain.ProviderStatusInTransit
	case "delivered", "partial_delivery":
		return domain.ProviderStatusDelivered
	case "return", "returned", "paid_return", "exchange":
		return domain.ProviderStatusReturned
	case "pickup_cancelled", "cancelled", "pickup_failed":
		return domain.ProviderStatusCancelled
	}
	return domain.ProviderStatusUnknown
}

package domain

import (
	"context"
	"strings"
	"time"
)

// ShippingRate is the internal flat rate for one province.
type ShippingRate struct {
	ID                    int32     `json:"id"`
	Province              string    `json:"province"`
	Label                 string    `json:"label"`
	Cost                  float64   `json:"cost"`
	FreeShippingThreshold *float64  `json:"freeShippingThreshold"` // overrides the global threshold
	IsActive              bool      `json:"isActive"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Validate checks the fields an operator can edit.
func (r ShippingRate) Validate() error {
	if strings.TrimSpace(r.Province) == "" {
		return NewError(KindInvalidInput, "province is required", nil)
	}
	if r.Cost < 0 {
		return NewError(KindInvalidInput, "cost must not be negative", nil)
	}
	if r.FreeShippingThreshold != nil && *r.FreeShippingThreshold < 0 {
		return NewError(KindInvalidInput, "free shipping threshold must not be negative", nil)
	}
	return nil
}

type ConfigRepository interface {
	GetActiveShippingRates(ctx context.Context) ([]ShippingRate, error)
	GetAllShippingRates(ctx context.Context) ([]ShippingRate, error)
	GetShippingRateByProvince(ctx context.Context, province string) (*ShippingRate, error)
	CreateShippingRate(ctx context.Context, rate *ShippingRate) (*ShippingRate, error)
	UpdateShippingRate(ctx context.Context, rate *ShippingRate) (*ShippingRate, error)
	DeleteShippingRate(ctx context.Context, id int32) error
}

// DispatchSettings is an immutable snapshot of the toggles and pricing knobs that
// used to be read from a global settings row on every request.
type DispatchSettings struct {
	RiderDeliveryEnabled   bool            `json:"riderDeliveryEnabled"`
	CourierDeliveryEnabled bool            `json:"courierDeliveryEnabled"`
	EnabledPaymentMethods  []PaymentMethod `json:"enabledPaymentMethods"`
	FreeShippingThreshold  float64         `json:"freeShippingThreshold"` // 0 disables free shipping
	DefaultShippingCharge  float64         `json:"defaultShippingCharge"`
	CourierMarkupPercent   float64         `json:"courierMarkupPercent"`
	CourierMarkupFlat      float64         `json:"courierMarkupFlat"`
	DefaultItemWeight      float64         `json:"defaultItemWeight"` // kg per unit when unknown
}

func (s DispatchSettings) PaymentMethodEnabled(m PaymentMethod) bool {
	for _, v := range s.EnabledPaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

func (s DispatchSettings) DeliveryMethodEnabled(m DeliveryMethod) bool {
	switch m {
	case DeliveryMethodRider:
		return s.RiderDeliveryEnabled
	case DeliveryMethodExternal:
		return s.CourierDeliveryEnabled
	}
	return false
}

// Clone copies the slice so snapshots never share backing arrays.
func (s DispatchSettings) Clone() DispatchSettings {
	s.EnabledPaymentMethods = append([]PaymentMethod(nil), s.EnabledPaymentMethods...)
	return s
}

package usecase

import (
	"sync"
	"sync/atomic"

	"orderdesk-backend/internal/domain"
)

// SettingsProvider hands out immutable DispatchSettings snapshots.
// Updates replace the snapshot wholesale; readers never see a half-written value.
type SettingsProvider struct {
	current atomic.Pointer[domain.DispatchSettings]
	writeMu sync.Mutex
}

func NewSettingsProvider(initial domain.DispatchSettings) *SettingsProvider {
	p := &SettingsProvider{}
	snapshot := initial.Clone()
	p.current.Store(&snapshot)
	return p
}

// Snapshot returns a copy of the current settings.
func (p *SettingsProvider) Snapshot() domain.DispatchSettings {
	return p.current.Load().Clone()
}

// SettingsPatch carries optional overrides from the admin UI.
type SettingsPatch struct {
	RiderDeliveryEnabled   *bool                  `json:"riderDeliveryEnabled"`
	CourierDeliveryEnabled *bool                  `json:"courierDeliveryEnabled"`
	EnabledPaymentMethods  []domain.PaymentMethod `json:"enabledPaymentMethods"`
	FreeShippingThreshold  *float64               `json:"freeShippingThreshold"`
	DefaultShippingCharge  *float64               `json:"defaultShippingCharge"`
	CourierMarkupPercent   *float64               `json:"courierMarkupPercent"`
	CourierMarkupFlat      *float64               `json:"courierMarkupFlat"`
	DefaultItemWeight      *float64               `json:"defaultItemWeight"`
}

// Apply validates patch and stores a new snapshot built from the current one.
func (p *SettingsProvider) Apply(patch SettingsPatch) (domain.DispatchSettings, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	next := p.Snapshot()
	if patch.RiderDeliveryEnabled != nil {
		next.RiderDeliveryEnabled = *patch.RiderDeliveryEnabled
	}
	if patch.CourierDeliveryEnabled != nil {
		next.CourierDeliveryEnabled = *patch.CourierDeliveryEnabled
	}
	if patch.EnabledPaymentMethods != nil {
		for _, m := range patch.EnabledPaymentMethods {
			if _, err := domain.ParsePaymentMethod(string(m)); err != nil {
				return domain.DispatchSettings{}, err
			}
		}
		next.EnabledPaymentMethods = append([]domain.PaymentMethod(nil), patch.EnabledPaymentMethods...)
	}
	for _, f := range []struct {
		src  *float64
		dst  *float64
		name string
	}{
		{patch.FreeShippingThreshold, &next.FreeShippingThreshold, "freeShippingThreshold"},
		{patch.DefaultShippingCharge, &next.DefaultShippingCharge, "defaultShippingCharge"},
		{patch.CourierMarkupPercent, &next.CourierMarkupPercent, "courierMarkupPercent"},
		{patch.CourierMarkupFlat, &next.CourierMarkupFlat, "courierMarkupFlat"},
		{patch.DefaultItemWeight, &next.DefaultItemWeight, "defaultItemWeight"},
	} {
		if f.src == nil {
			continue
		}
		if *f.src < 0 {
			return domain.DispatchSettings{}, domain.NewError(domain.KindInvalidInput, f.name+" must not be negative", nil)
		}
		*f.dst = *f.src
	}
	if next.DefaultItemWeight == 0 {
		next.DefaultItemWeight = 1
	}

	p.current.Store(&next)
	return next.Clone(), nil
}

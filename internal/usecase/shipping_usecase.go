package usecase

import (
	"context"
	"errors"
	"strings"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// ShippingQuote is the priced result of either scheme.
type ShippingQuote struct {
	Method        domain.DeliveryMethod `json:"method"`
	Cost          float64               `json:"cost"`
	FreeShipping  bool                  `json:"freeShipping"`
	Province      string                `json:"province,omitempty"`
	ProviderPrice float64               `json:"providerPrice,omitempty"`
	Markup        float64               `json:"markup,omitempty"`
	Weight        float64               `json:"weight,omitempty"`
}

// ExternalQuoteReq prices a courier delivery. OverrideWeight wins over the
// weight estimated from Items.
type ExternalQuoteReq struct {
	CityID          int64
	ZoneID          int64
	Items           []domain.OrderItem
	OverrideWeight  *float64
	AmountToCollect float64
}

// ShippingUsecase resolves shipping cost for the internal flat-rate scheme and
// the courier weight/zone scheme.
type ShippingUsecase struct {
	configRepo domain.ConfigRepository
	gateway    domain.CourierGateway
	settings   *SettingsProvider
}

func NewShippingUsecase(configRepo domain.ConfigRepository, gateway domain.CourierGateway, settings *SettingsProvider) *ShippingUsecase {
	return &ShippingUsecase{
		configRepo: configRepo,
		gateway:    gateway,
		settings:   settings,
	}
}

// QuoteInternal: free above the threshold, else the province rate, else the default charge.
func (u *ShippingUsecase) QuoteInternal(ctx context.Context, province string, subTotal float64) (*ShippingQuote, error) {
	settings := u.settings.Snapshot()
	province = strings.TrimSpace(province)

	threshold := settings.FreeShippingThreshold
	cost := settings.DefaultShippingCharge

	rate, err := u.configRepo.GetShippingRateByProvince(ctx, province)
	switch {
	case err == nil && rate.IsActive:
		cost = rate.Cost
		if rate.FreeShippingThreshold != nil {
			threshold = *rate.FreeShippingThreshold
		}
	case err == nil, errors.Is(err, domain.ErrNotFound):
		logger.WithContext(ctx).Debug().Str("province", province).Msg("no active shipping rate, using default charge")
	default:
		return nil, err
	}

	quote := &ShippingQuote{
		Method:   domain.DeliveryMethodRider,
		Province: province,
		Cost:     cost,
	}
	if threshold > 0 && subTotal >= threshold {
		quote.Cost = 0
		quote.FreeShipping = true
	}
	return quote, nil
}

// QuoteExternal asks the courier for a price and adds the configured markup.
func (u *ShippingUsecase) QuoteExternal(ctx context.Context, req ExternalQuoteReq) (*ShippingQuote, error) {
	settings := u.settings.Snapshot()
	if req.CityID <= 0 || req.ZoneID <= 0 {
		return nil, domain.NewError(domain.KindLocationUnresolved, "courier city and zone are required for a quote", nil)
	}

	weight := EstimateWeight(req.Items, settings.DefaultItemWeight)
	if req.OverrideWeight != nil && *req.OverrideWeight > 0 {
		weight = *req.OverrideWeight
	}

	providerQuote, err := u.gateway.QuotePrice(ctx, domain.PriceQuoteRequest{
		CityID:          req.CityID,
		ZoneID:          req.ZoneID,
		Weight:          weight,
		AmountToCollect: req.AmountToCollect,
	})
	if err != nil {
		return nil, err
	}

	cost := ApplyMarkup(providerQuote.FinalPrice, settings.CourierMarkupPercent, settings.CourierMarkupFlat)
	return &ShippingQuote{
		Method:        domain.DeliveryMethodExternal,
		Cost:          cost,
		ProviderPrice: providerQuote.FinalPrice,
		Markup:        decimal.NewFromFloat(cost).Sub(decimal.NewFromFloat(providerQuote.FinalPrice)).InexactFloat64(),
		Weight:        weight,
	}, nil
}

// QuoteForOrder re-prices an existing order with the scheme it was placed under.
func (u *ShippingUsecase) QuoteForOrder(ctx context.Context, order *domain.Order) (*ShippingQuote, error) {
	if order.DeliveryMethod == domain.DeliveryMethodExternal {
		if order.CourierCityID == nil || order.CourierZoneID == nil {
			return nil, domain.NewError(domain.KindLocationUnresolved, "order has no courier city/zone yet", nil)
		}
		return u.QuoteExternal(ctx, ExternalQuoteReq{
			CityID:          *order.CourierCityID,
			ZoneID:          *order.CourierZoneID,
			Items:           order.Items,
			AmountToCollect: quoteCollectAmount(order),
		})
	}
	return u.QuoteInternal(ctx, order.ShippingAddress.Province, order.SubTotal)
}

// quoteCollectAmount is the COD value a courier quote is priced against: what
// the customer owes for the goods, leaving out the shipping charge being quoted.
// Checkout and requote both use it so an unchanged order requotes to the same cost.
func quoteCollectAmount(order *domain.Order) float64 {
	goods := order.Clone()
	goods.ShippingCost = 0
	goods.RecalculateTotal()
	return goods.AmountToCollect()
}

// EstimateWeight sums unit weight times quantity, defaulting unknown units.
func EstimateWeight(items []domain.OrderItem, defaultUnit float64) float64 {
	if defaultUnit <= 0 {
		defaultUnit = 1
	}
	total := decimal.Zero
	for _, it := range items {
		unit := defaultUnit
		if it.UnitWeight != nil && *it.UnitWeight > 0 {
			unit = *it.UnitWeight
		}
		total = total.Add(decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if total.IsZero() {
		return defaultUnit
	}
	return total.Round(3).InexactFloat64()
}

// ApplyMarkup returns price * (1 + percent/100) + flat, rounded to two places.
func ApplyMarkup(price, percent, flat float64) float64 {
	p := decimal.NewFromFloat(price)
	withPercent := p.Add(p.Mul(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100)))
	return withPercent.Add(decimal.NewFromFloat(flat)).Round(2).InexactFloat64()
}

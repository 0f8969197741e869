package v1

import (
	"net/http"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/cache"
	"orderdesk-backend/pkg/utils"
)

const enumsCacheKey = "system:config:enums"

type ConfigHandler struct {
	cache      cache.CacheService
	configRepo domain.ConfigRepository
	settings   *usecase.SettingsProvider
	ttl        time.Duration
}

// NewConfigHandler caches the enums payload for ttl. Admin writes invalidate it.
func NewConfigHandler(cache cache.CacheService, configRepo domain.ConfigRepository, settings *usecase.SettingsProvider, ttl time.Duration) *ConfigHandler {
	return &ConfigHandler{cache: cache, configRepo: configRepo, settings: settings, ttl: ttl}
}

// GET /api/v1/config/enums
func (h *ConfigHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")

	if val, found := h.cache.Get(enumsCacheKey); found {
		utils.WriteJSON(w, http.StatusOK, val)
		return
	}

	rates, err := h.configRepo.GetActiveShippingRates(r.Context())
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	settings := h.settings.Snapshot()
	deliveryMethods := make([]domain.DeliveryMethod, 0, len(domain.DeliveryMethods))
	for _, m := range domain.DeliveryMethods {
		if settings.DeliveryMethodEnabled(m) {
			deliveryMethods = append(deliveryMethods, m)
		}
	}

	response := map[string]interface{}{
		"orderStatuses":         domain.OrderStatuses,
		"paymentStatuses":       domain.PaymentStatuses,
		"paymentMethods":        settings.EnabledPaymentMethods,
		"deliveryMethods":       deliveryMethods,
		"shippingRates":         rates,
		"freeShippingThreshold": settings.FreeShippingThreshold,
	}

	h.cache.Set(enumsCacheKey, response, h.ttl)
	utils.WriteJSON(w, http.StatusOK, response)
}

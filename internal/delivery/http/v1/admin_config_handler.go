package v1

import (
	"net/http"
	"strconv"
	"strings"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/cache"
	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"
)

type AdminConfigHandler struct {
	cache      cache.CacheService
	configRepo domain.ConfigRepository
	settings   *usecase.SettingsProvider
}

func NewAdminConfigHandler(cache cache.CacheService, configRepo domain.ConfigRepository, settings *usecase.SettingsProvider) *AdminConfigHandler {
	return &AdminConfigHandler{cache: cache, configRepo: configRepo, settings: settings}
}

func rateID(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewError(domain.KindInvalidInput, "invalid rate id", err)
	}
	return int32(id), nil
}

// GET /api/v1/admin/config/shipping-rates
func (h *AdminConfigHandler) GetAllShippingRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.configRepo.GetAllShippingRates(r.Context())
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rates)
}

// POST /api/v1/admin/config/shipping-rates
func (h *AdminConfigHandler) CreateShippingRate(w http.ResponseWriter, r *http.Request) {
	var req domain.ShippingRate
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	req.Province = strings.TrimSpace(req.Province)
	if err := req.Validate(); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	created, err := h.configRepo.CreateShippingRate(r.Context(), &req)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	h.cache.Delete(enumsCacheKey)
	logger.WithContext(r.Context()).Info().Str("province", created.Province).Float64("cost", created.Cost).Msg("shipping rate created")
	utils.WriteJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/admin/config/shipping-rates/{id}
func (h *AdminConfigHandler) UpdateShippingRate(w http.ResponseWriter, r *http.Request) {
	id, err := rateID(r)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	var req domain.ShippingRate
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	req.ID = id
	req.Province = strings.TrimSpace(req.Province)
	if err := req.Validate(); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	updated, err := h.configRepo.UpdateShippingRate(r.Context(), &req)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	h.cache.Delete(enumsCacheKey)
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/admin/config/shipping-rates/{id}
func (h *AdminConfigHandler) DeleteShippingRate(w http.ResponseWriter, r *http.Request) {
	id, err := rateID(r)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	if err := h.configRepo.DeleteShippingRate(r.Context(), id); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	h.cache.Delete(enumsCacheKey)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/admin/config/settings
func (h *AdminConfigHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.settings.Snapshot())
}

// PATCH /api/v1/admin/config/settings
func (h *AdminConfigHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch usecase.SettingsPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	next, err := h.settings.Apply(patch)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	h.cache.Delete(enumsCacheKey)
	logger.WithContext(r.Context()).Info().
		Bool("rider_delivery", next.RiderDeliveryEnabled).
		Bool("courier_delivery", next.CourierDeliveryEnabled).
		Msg("dispatch settings updated")
	utils.WriteJSON(w, http.StatusOK, next)
}

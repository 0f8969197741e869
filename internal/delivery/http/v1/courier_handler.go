package v1

import (
	"net/http"
	"strconv"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/utils"
)

// CourierHandler exposes the courier coverage taxonomy and price quotes.
type CourierHandler struct {
	courierUC  *usecase.CourierUsecase
	shippingUC *usecase.ShippingUsecase
}

func NewCourierHandler(courierUC *usecase.CourierUsecase, shippingUC *usecase.ShippingUsecase) *CourierHandler {
	return &CourierHandler{courierUC: courierUC, shippingUC: shippingUC}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewError(domain.KindInvalidInput, "invalid "+name, err)
	}
	return id, nil
}

// GET /api/v1/admin/courier/cities
func (h *CourierHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.courierUC.ListCities(r.Context())
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	utils.WriteJSON(w, http.StatusOK, cities)
}

// GET /api/v1/admin/courier/cities/{cityId}/zones
func (h *CourierHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	cityID, err := pathID(r, "cityId")
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	zones, err := h.courierUC.ListZones(r.Context(), cityID)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	utils.WriteJSON(w, http.StatusOK, zones)
}

// GET /api/v1/admin/courier/zones/{zoneId}/areas
func (h *CourierHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	zoneID, err := pathID(r, "zoneId")
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	areas, err := h.courierUC.ListAreas(r.Context(), zoneID)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	utils.WriteJSON(w, http.StatusOK, areas)
}

// POST /api/v1/admin/courier/match-location
func (h *CourierHandler) MatchLocation(w http.ResponseWriter, r *http.Request) {
	var addr domain.ShippingAddress
	if err := utils.DecodeJSON(r, &addr); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	match, err := h.courierUC.MatchLocation(r.Context(), addr)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, match)
}

type quoteRequest struct {
	Method          domain.DeliveryMethod `json:"method"`
	Province        string                `json:"province"`
	SubTotal        float64               `json:"subTotal"`
	CityID          int64                 `json:"cityId"`
	ZoneID          int64                 `json:"zoneId"`
	Weight          *float64              `json:"weight"`
	AmountToCollect float64               `json:"amountToCollect"`
	Items           []domain.OrderItem    `json:"items"`
}

// POST /api/v1/shipping/quote
func (h *CourierHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	var (
		quote *usecase.ShippingQuote
		err   error
	)
	switch req.Method {
	case domain.DeliveryMethodRider, "":
		quote, err = h.shippingUC.QuoteInternal(r.Context(), req.Province, req.SubTotal)
	case domain.DeliveryMethodExternal:
		quote, err = h.shippingUC.QuoteExternal(r.Context(), usecase.ExternalQuoteReq{
			CityID:          req.CityID,
			ZoneID:          req.ZoneID,
			Items:           req.Items,
			OverrideWeight:  req.Weight,
			AmountToCollect: req.AmountToCollect,
		})
	default:
		_, err = domain.ParseDeliveryMethod(string(req.Method))
	}
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, quote)
}

// POST /api/v1/admin/courier/refresh
func (h *CourierHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.courierUC.Refresh()
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Courier coverage cache cleared"})
}

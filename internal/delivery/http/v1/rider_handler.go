package v1

import (
	"net/http"
	"strconv"

	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/utils"
)

type RiderHandler struct {
	riderUC *usecase.RiderUsecase
}

func NewRiderHandler(uc *usecase.RiderUsecase) *RiderHandler {
	return &RiderHandler{riderUC: uc}
}

// GET /api/v1/admin/riders?active=true
func (h *RiderHandler) ListRiders(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	riders, err := h.riderUC.ListRiders(r.Context(), activeOnly)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, riders)
}

// GET /api/v1/admin/riders/{id}
func (h *RiderHandler) GetRider(w http.ResponseWriter, r *http.Request) {
	rider, err := h.riderUC.GetRider(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rider)
}

// POST /api/v1/admin/riders
func (h *RiderHandler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateRiderReq
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	rider, err := h.riderUC.CreateRider(r.Context(), req)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, rider)
}

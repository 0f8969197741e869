package v1

import (
	"net/http"
	"strconv"

	"orderdesk-backend/internal/delivery/http/middleware"
	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/utils"
)

// OrderHandler serves the storefront side: checkout and the customer's own orders.
type OrderHandler struct {
	orderUC     *usecase.OrderUsecase
	maxQuantity int
}

func NewOrderHandler(uc *usecase.OrderUsecase, maxQuantity int) *OrderHandler {
	if maxQuantity <= 0 {
		maxQuantity = 10
	}
	return &OrderHandler{
		orderUC:     uc,
		maxQuantity: maxQuantity,
	}
}

// POST /api/v1/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req usecase.PlaceOrderReq
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	for _, it := range req.Items {
		if it.Quantity > h.maxQuantity {
			utils.WriteDomainError(w, r, domain.NewError(domain.KindInvalidInput,
				"quantity per item cannot exceed "+strconv.Itoa(h.maxQuantity), nil))
			return
		}
	}

	order, err := h.orderUC.PlaceOrder(r.Context(), middleware.ActorID(r), req)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders
func (h *OrderHandler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.ActorID(r)
	if userID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	orders, total, err := h.orderUC.ListOrders(r.Context(), domain.OrderFilter{UserID: userID, Page: page})
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}

// GET /api/v1/orders/{id}
func (h *OrderHandler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderUC.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	if order.UserID != middleware.ActorID(r) {
		// Other customers' orders look missing rather than forbidden.
		utils.WriteDomainError(w, r, domain.NewError(domain.KindNotFound, "order not found", nil))
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

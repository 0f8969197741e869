package v1

import (
	"net/http"
	"strconv"

	"orderdesk-backend/internal/delivery/http/middleware"
	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/utils"
)

type AdminOrderHandler struct {
	orderUC    *usecase.OrderUsecase
	dispatchUC *usecase.DispatchUsecase
	paymentUC  *usecase.PaymentUsecase
}

func NewAdminOrderHandler(orderUC *usecase.OrderUsecase, dispatchUC *usecase.DispatchUsecase, paymentUC *usecase.PaymentUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{
		orderUC:    orderUC,
		dispatchUC: dispatchUC,
		paymentUC:  paymentUC,
	}
}

// GET /api/v1/admin/orders
func (h *AdminOrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := domain.OrderFilter{
		Page:          page,
		Limit:         limit,
		Status:        domain.OrderStatus(q.Get("status")),
		PaymentStatus: domain.PaymentStatus(q.Get("payment_status")),
		DeliveryType:  domain.DeliveryType(q.Get("delivery_type")),
		RiderID:       q.Get("rider_id"),
		Search:        q.Get("search"),
	}

	orders, total, err := h.orderUC.ListOrders(r.Context(), filter)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GET /api/v1/admin/orders/{id}
func (h *AdminOrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderUC.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// GET /api/v1/admin/orders/{id}/history
func (h *AdminOrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.orderUC.GetOrderHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

// PATCH /api/v1/admin/orders/{id}/status
func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	order, err := h.orderUC.UpdateOrderStatus(r.Context(), r.PathValue("id"), status, req.Note, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// POST /api/v1/admin/orders/{id}/cancel
func (h *AdminOrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteDomainError(w, r, err)
			return
		}
	}

	res, err := h.orderUC.CancelOrder(r.Context(), r.PathValue("id"), req.Note, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, withWarning(res.Order, res.Warning))
}

type assignRequest struct {
	Method   domain.DeliveryMethod     `json:"method"`
	RiderID  string                    `json:"riderId"`
	External *usecase.ExternalDispatch `json:"external"`
}

// POST /api/v1/admin/orders/{id}/assign
func (h *AdminOrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	res, err := h.dispatchUC.Assign(r.Context(), r.PathValue("id"), req.Method,
		usecase.AssignParams{RiderID: req.RiderID, External: req.External}, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// POST /api/v1/admin/orders/{id}/assign-rider
func (h *AdminOrderHandler) AssignRider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiderID string `json:"riderId"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	res, err := h.dispatchUC.AssignRider(r.Context(), r.PathValue("id"), req.RiderID, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// POST /api/v1/admin/orders/{id}/dispatch
func (h *AdminOrderHandler) DispatchExternal(w http.ResponseWriter, r *http.Request) {
	var req usecase.ExternalDispatch
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	res, err := h.dispatchUC.DispatchExternal(r.Context(), r.PathValue("id"), req, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// DELETE /api/v1/admin/orders/{id}/assignment
func (h *AdminOrderHandler) CancelAssignment(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatchUC.CancelAssignment(r.Context(), r.PathValue("id"), middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"order":                res.Order,
		"previousDeliveryType": res.PreviousDeliveryType,
		"remoteCancelled":      res.RemoteCancelled,
		"statusDemoted":        res.StatusDemoted,
		"warning":              warningBody(res.Warning),
	})
}

// POST /api/v1/admin/orders/{id}/courier-sync
func (h *AdminOrderHandler) SyncCourierStatus(w http.ResponseWriter, r *http.Request) {
	order, providerStatus, err := h.dispatchUC.SyncCourierStatus(r.Context(), r.PathValue("id"), middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"order":          order,
		"providerStatus": providerStatus,
	})
}

// PATCH /api/v1/admin/orders/{id}/payment-status
func (h *AdminOrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	status, err := domain.ParsePaymentStatus(req.Status)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	order, err := h.paymentUC.UpdatePaymentStatus(r.Context(), r.PathValue("id"), status, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// POST /api/v1/admin/orders/{id}/refund
func (h *AdminOrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteDomainError(w, r, err)
			return
		}
	}

	res, err := h.paymentUC.Refund(r.Context(), r.PathValue("id"), req.Reason, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, withWarning(res.Order, res.Warning))
}

// POST /api/v1/admin/orders/{id}/switch-to-cod
func (h *AdminOrderHandler) SwitchToCOD(w http.ResponseWriter, r *http.Request) {
	order, err := h.paymentUC.SwitchToCOD(r.Context(), r.PathValue("id"), middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// GET /api/v1/admin/orders/{id}/cash-to-collect
func (h *AdminOrderHandler) CashToCollect(w http.ResponseWriter, r *http.Request) {
	amount, err := h.paymentUC.CashToCollect(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]float64{"amountToCollect": amount})
}

// PATCH /api/v1/admin/orders/{id}/shipping-cost
func (h *AdminOrderHandler) UpdateShippingCost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount *float64 `json:"amount"`
		Note   string   `json:"note"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	if req.Amount == nil {
		utils.WriteDomainError(w, r, domain.NewError(domain.KindInvalidInput, "amount is required", nil))
		return
	}

	order, err := h.orderUC.UpdateShippingCost(r.Context(), r.PathValue("id"), *req.Amount, req.Note, middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// POST /api/v1/admin/orders/{id}/shipping-cost/requote
func (h *AdminOrderHandler) RequoteShipping(w http.ResponseWriter, r *http.Request) {
	order, quote, err := h.orderUC.RequoteShipping(r.Context(), r.PathValue("id"), middleware.ActorID(r))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"order": order,
		"quote": quote,
	})
}

// withWarning wraps an order with the partial-reversal notice, if any.
func withWarning(order *domain.Order, warning *domain.DispatchError) map[string]interface{} {
	return map[string]interface{}{
		"order":   order,
		"warning": warningBody(warning),
	}
}

func warningBody(warning *domain.DispatchError) interface{} {
	if warning == nil {
		return nil
	}
	return map[string]string{
		"kind":    string(warning.Kind),
		"message": warning.Message,
		"hint":    domain.OperatorMessage(warning.Kind),
	}
}

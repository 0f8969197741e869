package v1

import (
	"net/http"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"
)

// PaymentCallbackHandler receives payment gateway notifications.
// Authentication is the shared token checked by middleware.CallbackToken.
type PaymentCallbackHandler struct {
	paymentUC *usecase.PaymentUsecase
}

func NewPaymentCallbackHandler(uc *usecase.PaymentUsecase) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{paymentUC: uc}
}

// POST /api/v1/payments/callback
func (h *PaymentCallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
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

	order, err := h.paymentUC.HandleGatewayCallback(r.Context(), req.OrderID, status)
	if err != nil {
		logger.WithContext(r.Context()).Warn().Err(err).Str("order_id", req.OrderID).Msg("payment callback failed")
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orderId":       order.ID,
		"paymentStatus": order.PaymentStatus,
	})
}

package v1

import (
	"fmt"
	"net/http"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/usecase"
	"orderdesk-backend/pkg/utils"
)

type AdminStatsHandler struct {
	statsUC *usecase.StatsUsecase
}

func NewAdminStatsHandler(uc *usecase.StatsUsecase) *AdminStatsHandler {
	return &AdminStatsHandler{statsUC: uc}
}

// parseDate reads a YYYY-MM-DD query param, falling back to def when absent.
func parseDate(r *http.Request, param string, def time.Time) (time.Time, error) {
	str := r.URL.Query().Get(param)
	if str == "" {
		return def, nil
	}
	t, err := time.Parse(time.DateOnly, str)
	if err != nil {
		return time.Time{}, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("%s must be YYYY-MM-DD", param), err)
	}
	return t, nil
}

// GET /api/v1/admin/stats/dispatch?start=2026-01-01&end=2026-01-31
// Both dates are inclusive. Defaults to the last 30 days.
func (h *AdminStatsHandler) GetDispatchSummary(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start, err := parseDate(r, "start", today.AddDate(0, 0, -29))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	end, err := parseDate(r, "end", today)
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}

	summary, err := h.statsUC.DispatchSummary(r.Context(), start, end.AddDate(0, 0, 1))
	if err != nil {
		utils.WriteDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

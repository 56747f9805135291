package handler

import (
	"net/http"

	"moneycase/internal/dto"
	"moneycase/internal/middleware"
	"moneycase/internal/service"

	"github.com/gin-gonic/gin"
)

type SummaryHandler struct{ svc service.SummaryService }

func NewSummaryHandler(svc service.SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// Quick godoc
// @Summary Today, week-to-date and month-to-date totals for a branch
// @Tags summaries
// @Produce json
// @Security BearerAuth
// @Param branch_id path int true "Branch ID"
// @Success 200 {object} dto.QuickSummary
// @Failure 404 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/branches/{branch_id}/summary [get]
func (h *SummaryHandler) Quick(c *gin.Context) {
	branchID, ok := branchParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.Quick(c.Request.Context(), branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Period godoc
// @Summary Aggregates sessions opened within a date range
// @Tags summaries
// @Produce json
// @Security BearerAuth
// @Param branch_id query int false "Branch ID (exclusive with restaurant_id)"
// @Param restaurant_id query int false "Restaurant ID (exclusive with branch_id)"
// @Param from query string true "First local day (YYYY-MM-DD)"
// @Param to query string false "Last local day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} dto.PeriodSummary
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/summary/period [get]
func (h *SummaryHandler) Period(c *gin.Context) {
	var q dto.PeriodQuery
	if !bindQueryAndValidate(c, &q) {
		return
	}
	if claims := middleware.GetClaims(c); claims != nil && claims.BranchID != nil {
		q.BranchID, q.RestaurantID = claims.BranchID, nil
	}

	scope := service.Scope{BranchID: q.BranchID, RestaurantID: q.RestaurantID}
	resp, err := h.svc.PeriodForDates(c.Request.Context(), scope, q.From, q.To)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

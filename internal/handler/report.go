package handler

import (
	"fmt"
	"net/http"

	"moneycase/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct{ svc service.ReportService }

func NewReportHandler(svc service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ZReport godoc
// @Summary Z-report snapshot of a closed session
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ZReportSnapshot
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "session still open"
// @Router /v1/sessions/{id}/zreport [get]
func (h *ReportHandler) ZReport(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	snap, err := h.svc.ZReport(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ZReportPDF godoc
// @Summary Printable Z-report
// @Tags reports
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "session still open"
// @Router /v1/sessions/{id}/zreport/pdf [get]
func (h *ReportHandler) ZReportPDF(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	pdf, err := h.svc.ZReportPDF(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="zreport_%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

package handler

import (
	"net/http"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/middleware"
	"moneycase/internal/repository"
	"moneycase/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SessionHandler struct{ svc service.SessionService }

func NewSessionHandler(svc service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Open godoc
// @Summary Opens a cash session for a branch
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param branch_id path int true "Branch ID"
// @Param body body dto.OpenSessionRequest true "Opening float"
// @Success 201 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "a session is already open; session_id names it"
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/branches/{branch_id}/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	branchID, ok := branchParam(c)
	if !ok {
		return
	}
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Open(c.Request.Context(), service.OpenCommand{
		BranchID:       branchID,
		OpeningBalance: req.OpeningBalance,
		Operator:       middleware.GetClaims(c).Operator(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Counts the drawer and closes the branch's open session
// @Description Expected cash is fetched from the sales source for the session window.
// @Description Pass session_id to make retries safe.
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param branch_id path int true "Branch ID"
// @Param body body dto.CloseSessionRequest true "Counted cash"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Failure 503 {object} apierror.APIError "sales source unavailable"
// @Router /v1/branches/{branch_id}/sessions/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	branchID, ok := branchParam(c)
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cmd := service.CloseCommand{
		BranchID:   branchID,
		ActualCash: req.ActualCash,
		Notes:      req.Notes,
		Operator:   middleware.GetClaims(c).Operator(),
	}
	if req.SessionID != "" {
		id := uuid.MustParse(req.SessionID) // validated by the uuid tag
		cmd.SessionID = &id
	}

	resp, err := h.svc.Close(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Active godoc
// @Summary Returns the branch's open session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param branch_id path int true "Branch ID"
// @Success 200 {object} dto.SessionResponse
// @Success 204 "no open session"
// @Router /v1/branches/{branch_id}/sessions/active [get]
func (h *SessionHandler) Active(c *gin.Context) {
	branchID, ok := branchParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.Active(c.Request.Context(), branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Returns one session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Lists sessions newest first
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param branch_id query int false "Branch ID"
// @Param restaurant_id query int false "Restaurant ID"
// @Param from query string false "Opened at or after (RFC 3339)"
// @Param to query string false "Opened at or before (RFC 3339)"
// @Param page_token query string false "Token from the previous page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.SessionPageResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/sessions [get]
func (h *SessionHandler) History(c *gin.Context) {
	var q dto.HistoryQuery
	if !bindQueryAndValidate(c, &q) {
		return
	}
	// Branch-restricted tokens only see their own branch.
	if claims := middleware.GetClaims(c); claims != nil && claims.BranchID != nil {
		q.BranchID, q.RestaurantID = claims.BranchID, nil
	}

	filter := repository.SessionFilter{BranchID: q.BranchID, RestaurantID: q.RestaurantID}
	if q.From != "" {
		t, _ := time.Parse(time.RFC3339, q.From)
		filter.From = &t
	}
	if q.To != "" {
		t, _ := time.Parse(time.RFC3339, q.To)
		filter.To = &t
	}

	resp, err := h.svc.History(c.Request.Context(), filter, repository.PageRequest{Token: q.PageToken, Size: q.PageSize})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

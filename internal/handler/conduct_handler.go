package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakolwit/school-portal-api/internal/service"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
	"github.com/sakolwit/school-portal-api/pkg/response"
)

// ConductHandler exposes the conduct ledger endpoints.
type ConductHandler struct {
	service *service.ConductService
	metrics *service.MetricsService
}

// NewConductHandler constructs a conduct handler. metrics may be nil.
func NewConductHandler(svc *service.ConductService, metrics *service.MetricsService) *ConductHandler {
	return &ConductHandler{service: svc, metrics: metrics}
}

func termIDQuery(c *gin.Context) *string {
	if termID := c.Query("term_id"); termID != "" {
		return &termID
	}
	return nil
}

// MyScore godoc
// @Summary Get own conduct score
// @Description Returns the authenticated student's score and history
// @Tags Conduct
// @Produce json
// @Param term_id query string false "Restrict history to one term"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conduct/me [get]
func (h *ConductHandler) MyScore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.service.GetScoreReport(c.Request.Context(), claims.UserID, termIDQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// StudentScore godoc
// @Summary Get a student's conduct score
// @Description Returns score and history for a student by id or student code
// @Tags Conduct
// @Produce json
// @Param id path string true "Student ID or student code"
// @Param term_id query string false "Restrict history to one term"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conduct/students/{id} [get]
func (h *ConductHandler) StudentScore(c *gin.Context) {
	report, err := h.service.GetScoreReport(c.Request.Context(), c.Param("id"), termIDQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportHistory godoc
// @Summary Export a student's conduct history
// @Description Renders the score history as a CSV or PDF download
// @Tags Conduct
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID or student code"
// @Param format query string false "csv or pdf" default(csv)
// @Param term_id query string false "Restrict history to one term"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /conduct/students/{id}/export [get]
func (h *ConductHandler) ExportHistory(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	payload, contentType, err := h.service.ExportHistory(c.Request.Context(), c.Param("id"), termIDQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("conduct-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, payload)
}

// Append godoc
// @Summary Record a conduct score change
// @Description Appends a score change to the ledger and updates the running total
// @Tags Conduct
// @Accept json
// @Produce json
// @Param payload body service.AppendRequest true "Score change payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /conduct/logs [post]
func (h *ConductHandler) Append(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.service.Append(c.Request.Context(), req, claims.UserID)
	if err != nil {
		appErr := appErrors.FromError(err)
		switch appErr.Status {
		case http.StatusConflict:
			h.metrics.RecordLedgerAppend("conflict")
		case http.StatusBadRequest, http.StatusNotFound:
			// client mistakes are not append failures
		default:
			h.metrics.RecordLedgerAppend("error")
		}
		response.Error(c, err)
		return
	}

	h.metrics.RecordLedgerAppend("ok")
	response.Created(c, entry)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakolwit/school-portal-api/internal/service"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
	"github.com/sakolwit/school-portal-api/pkg/response"
)

// TermHandler exposes term registry and reconciliation endpoints.
type TermHandler struct {
	service  *service.TermService
	backfill *service.BackfillService
	metrics  *service.MetricsService
}

// NewTermHandler constructs a term handler. metrics may be nil.
func NewTermHandler(svc *service.TermService, backfill *service.BackfillService, metrics *service.MetricsService) *TermHandler {
	return &TermHandler{service: svc, backfill: backfill, metrics: metrics}
}

// List godoc
// @Summary List academic terms
// @Description Lists all configured terms, most recent first
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conduct/terms [get]
func (h *TermHandler) List(c *gin.Context) {
	terms, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// Create godoc
// @Summary Create an academic term
// @Tags Terms
// @Accept json
// @Produce json
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /conduct/terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	var req service.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	term, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Backfill godoc
// @Summary Classify unclassified conduct logs into terms
// @Description Assigns terms to historical ledger entries; safe to re-run
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conduct/terms/backfill [post]
func (h *TermHandler) Backfill(c *gin.Context) {
	result, err := h.backfill.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordBackfill(result.Classified, len(result.Unmatched))
	response.JSON(c, http.StatusOK, result, nil)
}

// Verify godoc
// @Summary Audit cached conduct totals against the ledger
// @Description Recomputes every student's total and reports divergence
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conduct/verify [get]
func (h *TermHandler) Verify(c *gin.Context) {
	result, err := h.backfill.VerifyTotals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

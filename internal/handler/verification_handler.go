package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/service"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
	"github.com/noah-isme/studio-asistencia-api/pkg/response"
)

type verificationService interface {
	Location() *time.Location
	Summary(ctx context.Context, cutoff time.Time) (*models.SummaryResult, error)
	ExecuteBatch(ctx context.Context, req service.ExecuteBatchRequest) (*models.ExecutionReport, error)
	History(ctx context.Context, req service.HistoryRequest) ([]models.VerificationRecord, *models.Pagination, error)
	Undo(ctx context.Context, id string) (*models.Enrollment, error)
}

// VerificationHandler exposes the recurring verification engine.
type VerificationHandler struct {
	verifications verificationService
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(verifications verificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// Summary godoc
// @Summary Pending-work summary up to a cutoff date
// @Tags Verificaciones
// @Produce json
// @Param cutoff query string false "Cutoff date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /verificaciones/resumen [get]
func (h *VerificationHandler) Summary(c *gin.Context) {
	cutoff := time.Now()
	if raw := c.Query("cutoff"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.verifications.Location())
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid cutoff, expected YYYY-MM-DD"))
			return
		}
		cutoff = parsed
	}

	summary, err := h.verifications.Summary(c.Request.Context(), cutoff)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Execute godoc
// @Summary Run automatic verifications for outstanding days
// @Tags Verificaciones
// @Accept json
// @Produce json
// @Param payload body service.ExecuteBatchRequest true "Batch payload; empty items means every enrollment with pending work"
// @Success 200 {object} response.Envelope
// @Router /verificaciones/ejecutar [post]
func (h *VerificationHandler) Execute(c *gin.Context) {
	var req service.ExecuteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.verifications.ExecuteBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// History godoc
// @Summary List verification records
// @Tags Verificaciones
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param method query string false "presencial or automatica"
// @Param clientId query string false "Filter by client"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /verificaciones [get]
func (h *VerificationHandler) History(c *gin.Context) {
	req := service.HistoryRequest{
		From:     c.Query("from"),
		To:       c.Query("to"),
		Method:   c.Query("method"),
		ClientID: c.Query("clientId"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		req.PageSize = size
	}

	records, pagination, err := h.verifications.History(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Undo godoc
// @Summary Delete a mistaken verification record and restore its balance
// @Tags Verificaciones
// @Produce json
// @Param id path string true "Verification ID"
// @Success 200 {object} response.Envelope
// @Router /verificaciones/{id} [delete]
func (h *VerificationHandler) Undo(c *gin.Context) {
	enrollment, err := h.verifications.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

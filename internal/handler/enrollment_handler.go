package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/service"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
	"github.com/noah-isme/studio-asistencia-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error)
	Reconcile(ctx context.Context) (int, error)
	Regularize(ctx context.Context, key models.EnrollmentKey, req service.RegularizeRequest) (*models.Enrollment, error)
}

// EnrollmentHandler exposes the class balance store.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments and their balances
// @Tags Enrollments
// @Produce json
// @Param clientId query string false "Filter by client"
// @Param activity query string false "Filter by activity name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		ClientID:     c.Query("clientId"),
		ActivityName: c.Query("activity"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Reconcile godoc
// @Summary Pull client activities from the source and upsert enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/reconciliar [post]
func (h *EnrollmentHandler) Reconcile(c *gin.Context) {
	count, err := h.enrollments.Reconcile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"reconciled": count})
}

// Regularize godoc
// @Summary Reset an enrollment balance (administrative)
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param clientId path string true "Client ID"
// @Param activity path string true "Activity name"
// @Param payload body service.RegularizeRequest true "New pending balance and admin secret"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /enrollments/{clientId}/{activity}/regularizar [post]
func (h *EnrollmentHandler) Regularize(c *gin.Context) {
	var req service.RegularizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	key := models.EnrollmentKey{
		ClientID:     c.Param("clientId"),
		ActivityName: c.Param("activity"),
	}
	enrollment, err := h.enrollments.Regularize(c.Request.Context(), key, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

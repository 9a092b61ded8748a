package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/service"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
	"github.com/noah-isme/studio-asistencia-api/pkg/response"
)

type checkinService interface {
	Verify(ctx context.Context, req service.CheckinRequest) (*models.Enrollment, error)
}

// CheckinHandler exposes the front-desk presencial verification.
type CheckinHandler struct {
	checkins checkinService
}

// NewCheckinHandler constructs CheckinHandler.
func NewCheckinHandler(checkins checkinService) *CheckinHandler {
	return &CheckinHandler{checkins: checkins}
}

// Checkin godoc
// @Summary Register a presencial verification for today
// @Tags Checkin
// @Accept json
// @Produce json
// @Param payload body service.CheckinRequest true "Client and optional activity"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /checkin [post]
func (h *CheckinHandler) Checkin(c *gin.Context) {
	var req service.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.checkins.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

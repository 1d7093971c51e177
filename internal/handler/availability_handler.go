package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/subdesk-api/internal/dto"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
	"github.com/noah-isme/subdesk-api/pkg/response"
)

type availabilityService interface {
	RankCandidates(ctx context.Context, day, periodCode, absentTeacher string) (*dto.AvailabilityResponse, error)
}

// AvailabilityHandler exposes the candidate ranking endpoint.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds a new handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Rank godoc
// @Summary Rank substitute candidates for an absence
// @Tags Availability
// @Produce json
// @Param day query string true "Day name"
// @Param period query string true "Period code"
// @Param absent query string true "Absent teacher"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Rank(c *gin.Context) {
	day := c.Query("day")
	period := c.Query("period")
	absent := c.Query("absent")
	if day == "" || period == "" || absent == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day, period and absent are required"))
		return
	}

	result, err := h.service.RankCandidates(c.Request.Context(), day, period, absent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

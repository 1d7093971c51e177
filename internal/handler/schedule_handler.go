package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
	"github.com/noah-isme/subdesk-api/pkg/response"
)

// ScheduleHandler serves read-only views of the loaded weekly grid.
type ScheduleHandler struct {
	model *schedule.Model
}

// NewScheduleHandler builds a new handler.
func NewScheduleHandler(model *schedule.Model) *ScheduleHandler {
	return &ScheduleHandler{model: model}
}

// Meta godoc
// @Summary Describe the loaded schedule
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Meta(c *gin.Context) {
	meta := dto.ScheduleMeta{
		Days:     h.model.Days(),
		Periods:  h.model.Periods(),
		Teachers: h.model.TeacherNames(),
	}
	response.JSON(c, http.StatusOK, meta, nil)
}

// Routine godoc
// @Summary Day grid of all teachers
// @Tags Schedule
// @Produce json
// @Param day query string true "Day name"
// @Success 200 {object} response.Envelope
// @Router /schedule/routine [get]
func (h *ScheduleHandler) Routine(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day is required"))
		return
	}

	rows := make([]dto.RoutineRow, 0)
	for _, teacher := range h.model.TeacherNames() {
		rows = append(rows, dto.RoutineRow{
			Teacher: teacher,
			Values:  h.model.GridRow(teacher, day),
		})
	}

	resp := dto.RoutineResponse{
		Day:     day,
		Periods: h.model.Periods(),
		Rows:    rows,
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/subdesk-api/internal/models"
	"github.com/noah-isme/subdesk-api/pkg/response"
)

type historyService interface {
	Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error)
	Export(ctx context.Context, format string) ([]byte, string, string, error)
}

// HistoryHandler exposes assignment history and export endpoints.
type HistoryHandler struct {
	service historyService
}

// NewHistoryHandler builds a new handler.
func NewHistoryHandler(service historyService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// List godoc
// @Summary List assignment history
// @Tags Assignments
// @Produce json
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param assigned query string false "Assigned teacher"
// @Param absent query string false "Absent teacher"
// @Param day query string false "Day name"
// @Param period query string false "Period code"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *HistoryHandler) List(c *gin.Context) {
	filter := models.AssignmentFilter{
		DateFrom:        c.Query("from"),
		DateTo:          c.Query("to"),
		AssignedTeacher: c.Query("assigned"),
		AbsentTeacher:   c.Query("absent"),
		Day:             c.Query("day"),
		PeriodCode:      c.Query("period"),
		Page:            intQuery(c, "page", 0),
		PageSize:        intQuery(c, "page_size", 0),
	}

	rows, pagination, err := h.service.Query(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Export godoc
// @Summary Export all assignments
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /assignments/export [get]
func (h *HistoryHandler) Export(c *gin.Context) {
	payload, filename, contentType, err := h.service.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

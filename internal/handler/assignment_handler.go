package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/models"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
	"github.com/noah-isme/subdesk-api/pkg/response"
)

type assignmentService interface {
	Record(ctx context.Context, req dto.RecordAssignmentRequest) (*dto.RecordAssignmentResult, error)
}

// AssignmentHandler exposes the assignment confirmation endpoint.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Record godoc
// @Summary Record a substitute assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.RecordAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope "Prior assignment overwritten"
// @Success 201 {object} response.Envelope "Assignment created"
// @Router /assignments [post]
func (h *AssignmentHandler) Record(c *gin.Context) {
	var req dto.RecordAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	result, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.Outcome == models.OutcomeOverwritten {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

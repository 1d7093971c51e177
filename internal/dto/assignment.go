package dto

import "github.com/noah-isme/subdesk-api/internal/models"

// RecordAssignmentRequest is the payload for confirming a substitute choice.
// Date defaults to today when omitted.
type RecordAssignmentRequest struct {
	Date            string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Day             string `json:"day" validate:"required"`
	PeriodCode      string `json:"period_code" validate:"required"`
	AbsentTeacher   string `json:"absent_teacher" validate:"required"`
	AssignedTeacher string `json:"assigned_teacher" validate:"required"`
	Notes           string `json:"notes"`
}

// RecordAssignmentResult reports the upsert outcome together with non-fatal
// warnings (repeat-load notice, snapshot export failure).
type RecordAssignmentResult struct {
	Outcome    models.UpsertOutcome `json:"outcome"`
	Assignment models.Assignment    `json:"assignment"`
	Warnings   []string             `json:"warnings,omitempty"`
}

package models

import "time"

// UpsertOutcome reports how an assignment write was resolved.
type UpsertOutcome string

const (
	OutcomeCreated     UpsertOutcome = "created"
	OutcomeOverwritten UpsertOutcome = "overwritten"
)

// Assignment is one substitute cover decision. At most one row exists per
// natural key (date, day, period_code, absent_teacher); a new submission for
// the same key replaces the prior row.
type Assignment struct {
	ID              string    `db:"id" json:"id"`
	Date            string    `db:"date" json:"date"`
	Day             string    `db:"day" json:"day"`
	PeriodCode      string    `db:"period_code" json:"period_code"`
	PeriodTime      string    `db:"period_time" json:"period_time"`
	AbsentTeacher   string    `db:"absent_teacher" json:"absent_teacher"`
	AssignedTeacher string    `db:"assigned_teacher" json:"assigned_teacher"`
	ClassIfKnown    *string   `db:"class_if_known" json:"class_if_known,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AssignmentFilter describes query params for listing assignment history.
type AssignmentFilter struct {
	DateFrom        string
	DateTo          string
	AssignedTeacher string
	AbsentTeacher   string
	Day             string
	PeriodCode      string
	Page            int
	PageSize        int
}

package dto

import "github.com/noah-isme/subdesk-api/internal/schedule"

// Fit says whether a candidate already teaches the class being covered.
type Fit string

const (
	FitTeaches     Fit = "TEACHES"
	FitNotTeaching Fit = "NOT_TEACHING"
	FitUnknown     Fit = "UNKNOWN"
)

// Candidate is one ranked substitute suggestion.
type Candidate struct {
	Teacher         string   `json:"teacher"`
	Fit             Fit      `json:"fit"`
	Load            string   `json:"load"`
	BusyPeriods     int      `json:"busy_periods"`
	TotalPeriods    int      `json:"total_periods"`
	ChosenYesterday bool     `json:"chosen_yesterday"`
	PriorCount      int      `json:"prior_count"`
	Teaches         []string `json:"teaches"`
}

// AvailabilityResponse carries the ranked candidates plus context about the
// absence being covered.
type AvailabilityResponse struct {
	Day                string            `json:"day"`
	PeriodCode         string            `json:"period_code"`
	AbsentTeacher      string            `json:"absent_teacher"`
	ClassCode          string            `json:"class_code,omitempty"`
	AbsentClassesToday []string          `json:"absent_classes_today"`
	EngagedPeriods     []schedule.Period `json:"engaged_periods"`
	Candidates         []Candidate       `json:"candidates"`
}

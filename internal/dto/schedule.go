package dto

import "github.com/noah-isme/subdesk-api/internal/schedule"

// ScheduleMeta describes the loaded weekly grid.
type ScheduleMeta struct {
	Days     []string          `json:"days"`
	Periods  []schedule.Period `json:"periods"`
	Teachers []string          `json:"teachers"`
}

// RoutineRow is one teacher's display values for a day, one per period.
type RoutineRow struct {
	Teacher string   `json:"teacher"`
	Values  []string `json:"values"`
}

// RoutineResponse is the day grid used by the routine view.
type RoutineResponse struct {
	Day     string            `json:"day"`
	Periods []schedule.Period `json:"periods"`
	Rows    []RoutineRow      `json:"rows"`
}

package dto

// SettingsResponse exposes the workflow settings with defaults applied.
type SettingsResponse struct {
	WarnRepeats   bool     `json:"warn_repeats"`
	WarnThreshold int      `json:"warn_threshold"`
	OffDays       []string `json:"off_days"`
}

// UpdateSettingsRequest replaces the workflow settings. Off days are
// informational only and are not enforced by the ranking engine.
type UpdateSettingsRequest struct {
	WarnRepeats   *bool    `json:"warn_repeats" validate:"required"`
	WarnThreshold *int     `json:"warn_threshold" validate:"required,min=1"`
	OffDays       []string `json:"off_days"`
}

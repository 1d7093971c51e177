package models

import "time"

// Setting keys understood by the workflow. The store itself is
// schema-agnostic; callers validate values before writing.
const (
	SettingWarnRepeats   = "warn_repeats"
	SettingWarnThreshold = "warn_threshold"
	SettingOffDays       = "off_days"
)

// Setting is a flat key/value row.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

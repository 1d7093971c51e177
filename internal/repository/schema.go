package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		day TEXT NOT NULL,
		period_code TEXT NOT NULL,
		period_time TEXT NOT NULL,
		absent_teacher TEXT NOT NULL,
		assigned_teacher TEXT NOT NULL,
		class_if_known TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (date, day, period_code, absent_teacher)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_assigned_teacher ON assignments (assigned_teacher)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_absent_teacher ON assignments (absent_teacher)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_date ON assignments (date)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema applies the idempotent schema bootstrap. Dates are stored as
// ISO YYYY-MM-DD text so range predicates and the natural key compare as
// plain strings. The unique constraint on the natural key backstops the
// upsert protocol.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

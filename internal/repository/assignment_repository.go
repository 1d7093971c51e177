package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/subdesk-api/internal/models"
)

// AssignmentRepository persists substitute assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, date, day, period_code, period_time, absent_teacher, assigned_teacher, class_if_known, notes, created_at`

// Upsert writes the assignment under its natural key (date, day,
// period_code, absent_teacher). The current row for the key, if any, is read
// under lock and replaced inside the same transaction, so concurrent writers
// on the same key cannot interleave. Two writers creating the same key race
// past the row lock (there is no row to lock yet); the loser's insert hits
// the unique index and the upsert re-runs once, now finding the winner's row
// to replace.
func (r *AssignmentRepository) Upsert(ctx context.Context, assignment *models.Assignment) (models.UpsertOutcome, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	outcome, err := r.upsertTx(ctx, assignment)
	if err != nil && isUniqueViolation(err) {
		return r.upsertTx(ctx, assignment)
	}
	return outcome, err
}

func (r *AssignmentRepository) upsertTx(ctx context.Context, assignment *models.Assignment) (models.UpsertOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin assignment upsert tx: %w", err)
	}

	const current = `SELECT id FROM assignments WHERE date = $1 AND day = $2 AND period_code = $3 AND absent_teacher = $4 FOR UPDATE`
	outcome := models.OutcomeCreated
	var existingID string
	err = tx.GetContext(ctx, &existingID, current, assignment.Date, assignment.Day, assignment.PeriodCode, assignment.AbsentTeacher)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, existingID); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("replace existing assignment: %w", err)
		}
		outcome = models.OutcomeOverwritten
	case err != sql.ErrNoRows:
		_ = tx.Rollback()
		return "", fmt.Errorf("read current assignment: %w", err)
	}

	const insert = `INSERT INTO assignments (id, date, day, period_code, period_time, absent_teacher, assigned_teacher, class_if_known, notes, created_at)
		VALUES (:id, :date, :day, :period_code, :period_time, :absent_teacher, :assigned_teacher, :class_if_known, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, assignment); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit assignment upsert: %w", err)
	}
	return outcome, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// WasChosenOn reports whether the teacher holds any assignment dated date.
func (r *AssignmentRepository) WasChosenOn(ctx context.Context, teacher, date string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE assigned_teacher = $1 AND date = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, teacher, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check chosen on date: %w", err)
	}
	return true, nil
}

// PriorCount returns the teacher's all-time assignment count.
func (r *AssignmentRepository) PriorCount(ctx context.Context, teacher string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE assigned_teacher = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacher); err != nil {
		return 0, fmt.Errorf("count prior assignments: %w", err)
	}
	return count, nil
}

// RecentCount counts assignments for the teacher dated within [from, to],
// inclusive on both ends.
func (r *AssignmentRepository) RecentCount(ctx context.Context, teacher, from, to string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE assigned_teacher = $1 AND date >= $2 AND date <= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacher, from, to); err != nil {
		return 0, fmt.Errorf("count recent assignments: %w", err)
	}
	return count, nil
}

// List returns assignments matching the filter, newest date first. Day and
// period fall back to lexical order here; callers owning the schedule
// metadata re-rank them canonically.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	conditions := []string{}
	args := []interface{}{}

	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	add("date >= $%d", filter.DateFrom)
	add("date <= $%d", filter.DateTo)
	add("assigned_teacher = $%d", filter.AssignedTeacher)
	add("absent_teacher = $%d", filter.AbsentTeacher)
	add("day = $%d", filter.Day)
	add("period_code = $%d", filter.PeriodCode)

	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, day ASC, period_code ASC"

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ExportAll returns every assignment in the default ordering.
func (r *AssignmentRepository) ExportAll(ctx context.Context) ([]models.Assignment, error) {
	return r.List(ctx, models.AssignmentFilter{})
}

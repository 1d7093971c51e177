package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/models"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
	"github.com/noah-isme/subdesk-api/pkg/export"
)

// recentWindowDays is the inclusive look-back window for the repeat warning.
const recentWindowDays = 5

type assignmentStore interface {
	Upsert(ctx context.Context, assignment *models.Assignment) (models.UpsertOutcome, error)
	RecentCount(ctx context.Context, teacher, from, to string) (int, error)
	ExportAll(ctx context.Context) ([]models.Assignment, error)
}

type repeatWarningSettings interface {
	WarnRepeats(ctx context.Context) (bool, error)
	WarnThreshold(ctx context.Context) (int, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type snapshotStorage interface {
	Save(filename string, data []byte) (string, error)
}

// AssignmentService runs the confirm-a-substitute workflow: validate,
// resolve context from the schedule, warn on repeat load, upsert, then
// refresh the CSV snapshot.
type AssignmentService struct {
	repo         assignmentStore
	settings     repeatWarningSettings
	model        *schedule.Model
	cache        cacheInvalidator
	storage      snapshotStorage
	csv          csvRenderer
	validator    *validator.Validate
	logger       *zap.Logger
	snapshotFile string
	now          func() time.Time
}

// NewAssignmentService constructs an AssignmentService. cache and storage
// may be nil; the workflow then skips invalidation or snapshotting.
func NewAssignmentService(repo assignmentStore, settings repeatWarningSettings, model *schedule.Model, cache cacheInvalidator, storage snapshotStorage, csv csvRenderer, validate *validator.Validate, logger *zap.Logger, snapshotFile string) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if snapshotFile == "" {
		snapshotFile = "substitutions.csv"
	}
	return &AssignmentService{
		repo:         repo,
		settings:     settings,
		model:        model,
		cache:        cache,
		storage:      storage,
		csv:          csv,
		validator:    validate,
		logger:       logger,
		snapshotFile: snapshotFile,
		now:          time.Now,
	}
}

// Record persists the substitute choice. A natural-key collision is not an
// error: the prior row is replaced and the outcome reports "overwritten".
// Snapshot export failure is returned as a warning beside the successful
// outcome, never as a failure.
func (s *AssignmentService) Record(ctx context.Context, req dto.RecordAssignmentRequest) (*dto.RecordAssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.model.PeriodIndex(req.PeriodCode); err != nil {
		return nil, err
	}

	date := req.Date
	if date == "" {
		date = s.now().Format(dateLayout)
	}

	warnings := []string{}
	if warning, err := s.repeatWarning(ctx, req.AssignedTeacher, date); err != nil {
		return nil, err
	} else if warning != "" {
		warnings = append(warnings, warning)
	}

	assignment := &models.Assignment{
		Date:            date,
		Day:             req.Day,
		PeriodCode:      req.PeriodCode,
		PeriodTime:      s.model.PeriodTime(req.PeriodCode),
		AbsentTeacher:   req.AbsentTeacher,
		AssignedTeacher: req.AssignedTeacher,
	}
	if class, ok := s.model.ResolveClass(req.AbsentTeacher, req.Day, req.PeriodCode); ok {
		assignment.ClassIfKnown = &class
	}
	if req.Notes != "" {
		notes := req.Notes
		assignment.Notes = &notes
	}

	outcome, err := s.repo.Upsert(ctx, assignment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignment")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, AvailabilityCacheKeyPattern); err != nil {
			s.logger.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}

	if err := s.refreshSnapshot(ctx); err != nil {
		s.logger.Warn("csv snapshot refresh failed", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("csv snapshot failed: %v", err))
	}

	return &dto.RecordAssignmentResult{
		Outcome:    outcome,
		Assignment: *assignment,
		Warnings:   warnings,
	}, nil
}

func (s *AssignmentService) repeatWarning(ctx context.Context, teacher, date string) (string, error) {
	enabled, err := s.settings.WarnRepeats(ctx)
	if err != nil {
		return "", err
	}
	if !enabled {
		return "", nil
	}
	threshold, err := s.settings.WarnThreshold(ctx)
	if err != nil {
		return "", err
	}

	to, parseErr := time.Parse(dateLayout, date)
	if parseErr != nil {
		to = s.now()
	}
	from := to.AddDate(0, 0, -recentWindowDays).Format(dateLayout)
	count, err := s.repo.RecentCount(ctx, teacher, from, to.Format(dateLayout))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count recent assignments")
	}
	if count >= threshold {
		return fmt.Sprintf("%s has been chosen %d time(s) in the last %d days", teacher, count, recentWindowDays), nil
	}
	return "", nil
}

// refreshSnapshot rematerializes the full CSV snapshot after a write.
func (s *AssignmentService) refreshSnapshot(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	rows, err := s.repo.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	payload, err := s.csv.Render(assignmentDataset(rows))
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	if _, err := s.storage.Save(s.snapshotFile, payload); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/models"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

type stubAssignmentStore struct {
	outcome     models.UpsertOutcome
	upserted    *models.Assignment
	upsertErr   error
	recentCount int
	recentFrom  string
	recentTo    string
	exported    []models.Assignment
	exportErr   error
}

func (s *stubAssignmentStore) Upsert(ctx context.Context, assignment *models.Assignment) (models.UpsertOutcome, error) {
	if s.upsertErr != nil {
		return "", s.upsertErr
	}
	s.upserted = assignment
	if s.outcome == "" {
		return models.OutcomeCreated, nil
	}
	return s.outcome, nil
}

func (s *stubAssignmentStore) RecentCount(ctx context.Context, teacher, from, to string) (int, error) {
	s.recentFrom = from
	s.recentTo = to
	return s.recentCount, nil
}

func (s *stubAssignmentStore) ExportAll(ctx context.Context) ([]models.Assignment, error) {
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return s.exported, nil
}

type stubWarningSettings struct {
	enabled   bool
	threshold int
}

func (s *stubWarningSettings) WarnRepeats(ctx context.Context) (bool, error) {
	return s.enabled, nil
}

func (s *stubWarningSettings) WarnThreshold(ctx context.Context) (int, error) {
	return s.threshold, nil
}

type stubInvalidator struct {
	patterns []string
	err      error
}

func (s *stubInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return s.err
}

type stubSnapshotStorage struct {
	saved map[string][]byte
	err   error
}

func (s *stubSnapshotStorage) Save(filename string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return filename, nil
}

func assignmentTestModel(t *testing.T) *schedule.Model {
	t.Helper()
	return buildModel(t,
		[]string{"Monday", "Tuesday"},
		[]schedule.Period{{Code: "P1", Time: "08:00-08:45"}, {Code: "P2", Time: "08:45-09:30"}},
		map[string]map[string][]string{
			"Alice": {"Monday": {"Math7", ""}},
			"Bob":   {"Monday": {"", "Sci7"}},
		},
	)
}

func validRequest() dto.RecordAssignmentRequest {
	return dto.RecordAssignmentRequest{
		Date:            "2026-03-02",
		Day:             "Monday",
		PeriodCode:      "P1",
		AbsentTeacher:   "Alice",
		AssignedTeacher: "Bob",
		Notes:           "covering first period",
	}
}

func TestAssignmentRecordCreated(t *testing.T) {
	repo := &stubAssignmentStore{}
	cache := &stubInvalidator{}
	storage := &stubSnapshotStorage{}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), cache, storage, nil, nil, nil, "substitutions.csv")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, result.Outcome)
	assert.Empty(t, result.Warnings)

	require.NotNil(t, repo.upserted)
	assert.Equal(t, "08:00-08:45", repo.upserted.PeriodTime)
	require.NotNil(t, repo.upserted.ClassIfKnown)
	assert.Equal(t, "Math7", *repo.upserted.ClassIfKnown)
	require.NotNil(t, repo.upserted.Notes)
	assert.Equal(t, "covering first period", *repo.upserted.Notes)

	assert.Equal(t, []string{AvailabilityCacheKeyPattern}, cache.patterns)
	assert.Contains(t, storage.saved, "substitutions.csv")
}

func TestAssignmentRecordDefaultsDate(t *testing.T) {
	repo := &stubAssignmentStore{}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	req := validRequest()
	req.Date = ""
	result, err := svc.Record(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", result.Assignment.Date)
}

func TestAssignmentRecordOverwritten(t *testing.T) {
	repo := &stubAssignmentStore{outcome: models.OutcomeOverwritten}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOverwritten, result.Outcome)
}

func TestAssignmentRecordRejectsUnknownPeriod(t *testing.T) {
	repo := &stubAssignmentStore{}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")

	req := validRequest()
	req.PeriodCode = "P9"
	_, err := svc.Record(context.Background(), req)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnknownPeriod.Code, appErr.Code)
	assert.Nil(t, repo.upserted)
}

func TestAssignmentRecordRejectsInvalidPayload(t *testing.T) {
	svc := NewAssignmentService(&stubAssignmentStore{}, &stubWarningSettings{}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")

	req := validRequest()
	req.AssignedTeacher = ""
	_, err := svc.Record(context.Background(), req)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req = validRequest()
	req.Date = "02-03-2026"
	_, err = svc.Record(context.Background(), req)
	require.Error(t, err)
}

func TestAssignmentRecordRepeatWarning(t *testing.T) {
	repo := &stubAssignmentStore{recentCount: 2}
	svc := NewAssignmentService(repo, &stubWarningSettings{enabled: true, threshold: 2}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Bob has been chosen 2 time(s) in the last 5 days", result.Warnings[0])
	assert.Equal(t, "2026-02-25", repo.recentFrom)
	assert.Equal(t, "2026-03-02", repo.recentTo)
}

func TestAssignmentRecordNoWarningBelowThreshold(t *testing.T) {
	repo := &stubAssignmentStore{recentCount: 1}
	svc := NewAssignmentService(repo, &stubWarningSettings{enabled: true, threshold: 2}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestAssignmentRecordWarningDisabled(t *testing.T) {
	repo := &stubAssignmentStore{recentCount: 10}
	svc := NewAssignmentService(repo, &stubWarningSettings{enabled: false, threshold: 2}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, repo.recentFrom)
}

func TestAssignmentRecordSnapshotFailureIsWarning(t *testing.T) {
	repo := &stubAssignmentStore{}
	storage := &stubSnapshotStorage{err: assert.AnError}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), nil, storage, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "csv snapshot failed")
	assert.Equal(t, models.OutcomeCreated, result.Outcome)
}

func TestAssignmentRecordCacheFailureIsSilent(t *testing.T) {
	repo := &stubAssignmentStore{}
	cache := &stubInvalidator{err: assert.AnError}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), cache, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	result, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestAssignmentRecordUpsertFailure(t *testing.T) {
	repo := &stubAssignmentStore{upsertErr: assert.AnError}
	svc := NewAssignmentService(repo, &stubWarningSettings{}, assignmentTestModel(t), nil, nil, nil, nil, nil, "")
	svc.now = fixedClock("2026-03-02")

	_, err := svc.Record(context.Background(), validRequest())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/models"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

const (
	defaultWarnRepeats   = true
	defaultWarnThreshold = 2
)

type settingsStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// SettingsService exposes typed accessors over the schema-agnostic settings
// store. Missing or unparsable values fall back to documented defaults
// rather than erroring.
type SettingsService struct {
	repo      settingsStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsStore, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger}
}

// WarnRepeats reports whether the repeat-assignment warning is enabled.
func (s *SettingsService) WarnRepeats(ctx context.Context) (bool, error) {
	value, err := s.value(ctx, models.SettingWarnRepeats)
	if err != nil {
		return false, err
	}
	if value == "" {
		return defaultWarnRepeats, nil
	}
	return value == "1", nil
}

// WarnThreshold returns the recent-assignment count that triggers a warning.
func (s *SettingsService) WarnThreshold(ctx context.Context) (int, error) {
	value, err := s.value(ctx, models.SettingWarnThreshold)
	if err != nil {
		return 0, err
	}
	threshold, convErr := strconv.Atoi(value)
	if value == "" || convErr != nil || threshold < 1 {
		return defaultWarnThreshold, nil
	}
	return threshold, nil
}

// OffDays returns the informational off-day list. It is stored as JSON and
// not enforced by the ranking engine.
func (s *SettingsService) OffDays(ctx context.Context) ([]string, error) {
	value, err := s.value(ctx, models.SettingOffDays)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return []string{}, nil
	}
	var days []string
	if jsonErr := json.Unmarshal([]byte(value), &days); jsonErr != nil {
		s.logger.Warn("stored off_days is not valid JSON, falling back to empty", zap.Error(jsonErr))
		return []string{}, nil
	}
	return days, nil
}

// Get assembles the full settings view with defaults applied.
func (s *SettingsService) Get(ctx context.Context) (*dto.SettingsResponse, error) {
	warnRepeats, err := s.WarnRepeats(ctx)
	if err != nil {
		return nil, err
	}
	threshold, err := s.WarnThreshold(ctx)
	if err != nil {
		return nil, err
	}
	offDays, err := s.OffDays(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SettingsResponse{
		WarnRepeats:   warnRepeats,
		WarnThreshold: threshold,
		OffDays:       offDays,
	}, nil
}

// Update replaces all settings, last write wins.
func (s *SettingsService) Update(ctx context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	warnRepeats := "0"
	if *req.WarnRepeats {
		warnRepeats = "1"
	}
	if err := s.set(ctx, models.SettingWarnRepeats, warnRepeats); err != nil {
		return nil, err
	}
	if err := s.set(ctx, models.SettingWarnThreshold, strconv.Itoa(*req.WarnThreshold)); err != nil {
		return nil, err
	}

	offDays := req.OffDays
	if offDays == nil {
		offDays = []string{}
	}
	encoded, err := json.Marshal(offDays)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "off_days is not encodable")
	}
	if err := s.set(ctx, models.SettingOffDays, string(encoded)); err != nil {
		return nil, err
	}

	return s.Get(ctx)
}

func (s *SettingsService) value(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read setting")
	}
	return setting.Value, nil
}

func (s *SettingsService) set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write setting")
	}
	return nil
}

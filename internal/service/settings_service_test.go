package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/models"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

type stubSettingsStore struct {
	values map[string]string
	getErr error
	setErr error
}

func (s *stubSettingsStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Setting{Key: key, Value: value}, nil
}

func (s *stubSettingsStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

func TestSettingsDefaults(t *testing.T) {
	svc := NewSettingsService(&stubSettingsStore{}, nil, nil)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.WarnRepeats)
	assert.Equal(t, 2, settings.WarnThreshold)
	assert.Equal(t, []string{}, settings.OffDays)
}

func TestSettingsStoredValues(t *testing.T) {
	store := &stubSettingsStore{values: map[string]string{
		models.SettingWarnRepeats:   "0",
		models.SettingWarnThreshold: "3",
		models.SettingOffDays:       `["Friday","Sunday"]`,
	}}
	svc := NewSettingsService(store, nil, nil)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, settings.WarnRepeats)
	assert.Equal(t, 3, settings.WarnThreshold)
	assert.Equal(t, []string{"Friday", "Sunday"}, settings.OffDays)
}

func TestSettingsUnparsableValuesFallBack(t *testing.T) {
	store := &stubSettingsStore{values: map[string]string{
		models.SettingWarnThreshold: "not-a-number",
		models.SettingOffDays:       "not json",
	}}
	svc := NewSettingsService(store, nil, nil)

	threshold, err := svc.WarnThreshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, threshold)

	offDays, err := svc.OffDays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, offDays)
}

func TestSettingsThresholdBelowOneFallsBack(t *testing.T) {
	store := &stubSettingsStore{values: map[string]string{models.SettingWarnThreshold: "0"}}
	svc := NewSettingsService(store, nil, nil)

	threshold, err := svc.WarnThreshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, threshold)
}

func TestSettingsUpdateRoundTrip(t *testing.T) {
	store := &stubSettingsStore{}
	svc := NewSettingsService(store, nil, nil)

	warnRepeats := false
	threshold := 4
	settings, err := svc.Update(context.Background(), dto.UpdateSettingsRequest{
		WarnRepeats:   &warnRepeats,
		WarnThreshold: &threshold,
		OffDays:       []string{"Friday"},
	})
	require.NoError(t, err)
	assert.False(t, settings.WarnRepeats)
	assert.Equal(t, 4, settings.WarnThreshold)
	assert.Equal(t, []string{"Friday"}, settings.OffDays)

	assert.Equal(t, "0", store.values[models.SettingWarnRepeats])
	assert.Equal(t, "4", store.values[models.SettingWarnThreshold])
	assert.Equal(t, `["Friday"]`, store.values[models.SettingOffDays])
}

func TestSettingsUpdateNilOffDaysStoredAsEmpty(t *testing.T) {
	store := &stubSettingsStore{}
	svc := NewSettingsService(store, nil, nil)

	warnRepeats := true
	threshold := 2
	settings, err := svc.Update(context.Background(), dto.UpdateSettingsRequest{
		WarnRepeats:   &warnRepeats,
		WarnThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, settings.OffDays)
	assert.Equal(t, `[]`, store.values[models.SettingOffDays])
}

func TestSettingsUpdateValidation(t *testing.T) {
	svc := NewSettingsService(&stubSettingsStore{}, nil, nil)

	threshold := 0
	warnRepeats := true
	_, err := svc.Update(context.Background(), dto.UpdateSettingsRequest{
		WarnRepeats:   &warnRepeats,
		WarnThreshold: &threshold,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Update(context.Background(), dto.UpdateSettingsRequest{WarnThreshold: &threshold})
	require.Error(t, err)
}

func TestSettingsStoreFailure(t *testing.T) {
	svc := NewSettingsService(&stubSettingsStore{getErr: assert.AnError}, nil, nil)

	_, err := svc.Get(context.Background())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

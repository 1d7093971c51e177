package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

func buildModel(t *testing.T, days []string, periods []schedule.Period, teachers map[string]map[string][]string) *schedule.Model {
	t.Helper()
	doc := map[string]interface{}{
		"metadata": map[string]interface{}{"days": days, "periods": periods},
		"teachers": teachers,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	model, err := schedule.Parse(data)
	require.NoError(t, err)
	return model
}

type stubHistoryReader struct {
	chosen map[string]string // teacher -> date chosen on
	prior  map[string]int
	err    error
}

func (s *stubHistoryReader) WasChosenOn(ctx context.Context, teacher, date string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.chosen[teacher] == date, nil
}

func (s *stubHistoryReader) PriorCount(ctx context.Context, teacher string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prior[teacher], nil
}

func fixedClock(date string) func() time.Time {
	parsed, _ := time.Parse("2006-01-02", date)
	return func() time.Time { return parsed }
}

func newAvailabilityService(model *schedule.Model, history *stubHistoryReader) *AvailabilityService {
	svc := NewAvailabilityService(model, history, nil, nil, nil, time.Minute)
	svc.now = fixedClock("2026-03-02")
	return svc
}

func TestRankCandidatesUnknownPeriod(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}},
		map[string]map[string][]string{"A": {"Monday": {"Math7"}}},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	_, err := svc.RankCandidates(context.Background(), "Monday", "P9", "A")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnknownPeriod.Code, appErr.Code)
}

func TestRankCandidatesExcludesOffDayTeachers(t *testing.T) {
	// B is nominally free at P1 but teaches nothing all Monday; C has no
	// Monday row at all. Neither is a valid substitute.
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7"}},
			"B": {"Monday": {""}},
			"C": {},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	assert.Empty(t, resp.Candidates)
	assert.Equal(t, "Math7", resp.ClassCode)
	assert.Equal(t, []string{"Math7"}, resp.AbsentClassesToday)
}

func TestRankCandidatesIncludesTeacherBusyElsewhere(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", ""}},
			"B": {"Monday": {"", "Sci7"}},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	c := resp.Candidates[0]
	assert.Equal(t, "B", c.Teacher)
	assert.Equal(t, dto.FitNotTeaching, c.Fit)
	assert.Equal(t, "1/2", c.Load)
	assert.Equal(t, 1, c.BusyPeriods)
	assert.Equal(t, 2, c.TotalPeriods)
	assert.Equal(t, []string{"Sci7"}, c.Teaches)
}

func TestRankCandidatesExcludesAbsentAndOccupied(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", "Math8"}},
			"B": {"Monday": {"Sci7", "Sci7"}},
			"C": {"Monday": {"", "Eng7"}},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "C", resp.Candidates[0].Teacher)
}

func TestRankCandidatesClassFitFirst(t *testing.T) {
	// B teaches the class being covered, so B leads even though C carries
	// the heavier day.
	model := buildModel(t,
		[]string{"Monday", "Tuesday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}, {Code: "P3", Time: "10:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", "", ""}},
			"B": {"Monday": {"", "Sci7", ""}, "Tuesday": {"Math7", "", ""}},
			"C": {"Monday": {"", "Eng7", "Eng8"}},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "B", resp.Candidates[0].Teacher)
	assert.Equal(t, dto.FitTeaches, resp.Candidates[0].Fit)
	assert.Equal(t, "C", resp.Candidates[1].Teacher)
}

func TestRankCandidatesPrefersNumericLoad(t *testing.T) {
	// Load compares by busy count, not by the "busy/total" display string:
	// "10/12" sorts before "2/12" lexically, which would invert the order.
	periods := make([]schedule.Period, 12)
	heavy := make([]string, 12)
	light := make([]string, 12)
	absent := make([]string, 12)
	for i := range periods {
		periods[i] = schedule.Period{Code: fmt.Sprintf("P%d", i+1), Time: fmt.Sprintf("%02d:00", 8+i)}
		if i > 0 && i < 11 {
			heavy[i] = "Math7"
		}
		if i == 1 || i == 2 {
			light[i] = "Sci7"
		}
		if i == 0 {
			absent[i] = "Eng7"
		}
	}
	model := buildModel(t,
		[]string{"Monday"},
		periods,
		map[string]map[string][]string{
			"Absent": {"Monday": absent},
			"Heavy":  {"Monday": heavy},
			"Light":  {"Monday": light},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "Absent")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "Heavy", resp.Candidates[0].Teacher)
	assert.Equal(t, "10/12", resp.Candidates[0].Load)
	assert.Equal(t, "Light", resp.Candidates[1].Teacher)
	assert.Equal(t, "2/12", resp.Candidates[1].Load)
}

func TestRankCandidatesUnresolvedClassPrefersLighterLoad(t *testing.T) {
	// The absent teacher has no class at this period, so the fairer, lighter
	// day leads.
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}, {Code: "P3", Time: "10:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"", "Math7", ""}},
			"B": {"Monday": {"", "Sci7", "Sci8"}},
			"C": {"Monday": {"", "Eng7", ""}},
		},
	)
	svc := newAvailabilityService(model, &stubHistoryReader{})

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "C", resp.Candidates[0].Teacher)
	assert.Equal(t, dto.FitUnknown, resp.Candidates[0].Fit)
	assert.Equal(t, "B", resp.Candidates[1].Teacher)
	assert.Empty(t, resp.ClassCode)
}

func TestRankCandidatesFairnessTiebreaks(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", ""}},
			"B": {"Monday": {"", "Sci7"}},
			"C": {"Monday": {"", "Eng7"}},
			"D": {"Monday": {"", "Geo7"}},
		},
	)
	history := &stubHistoryReader{
		chosen: map[string]string{"B": "2026-03-01"},
		prior:  map[string]int{"B": 1, "C": 3, "D": 1},
	}
	svc := newAvailabilityService(model, history)

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 3)
	// Equal fit and load: not-chosen-yesterday first, then fewer prior
	// assignments, then name.
	assert.Equal(t, "D", resp.Candidates[0].Teacher)
	assert.Equal(t, "C", resp.Candidates[1].Teacher)
	assert.Equal(t, "B", resp.Candidates[2].Teacher)
	assert.True(t, resp.Candidates[2].ChosenYesterday)
}

type fakeAvailabilityCache struct {
	entries map[string][]byte
	sets    int
}

func (f *fakeAvailabilityCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeAvailabilityCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if f.entries == nil {
		f.entries = make(map[string][]byte)
	}
	f.entries[key] = raw
	f.sets++
	return nil
}

func TestRankCandidatesCachesResponse(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", ""}},
			"B": {"Monday": {"", "Sci7"}},
		},
	)
	cache := &fakeAvailabilityCache{}
	svc := NewAvailabilityService(model, &stubHistoryReader{}, cache, NewMetricsService(), nil, time.Minute)
	svc.now = fixedClock("2026-03-02")

	first, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, first.Candidates, second.Candidates)
}

func TestRankCandidatesObservesHistoryReads(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", ""}},
			"B": {"Monday": {"", "Sci7"}},
		},
	)
	metrics := NewMetricsService()
	svc := NewAvailabilityService(model, &stubHistoryReader{}, nil, metrics, nil, time.Minute)
	svc.now = fixedClock("2026-03-02")

	_, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `db_query_duration_seconds_count{query="assignment_history"} 1`)
}

type wrappedMissCache struct{}

func (wrappedMissCache) Get(ctx context.Context, key string, dest interface{}) error {
	return fmt.Errorf("lookup %s: %w", key, appErrors.ErrCacheMiss)
}

func (wrappedMissCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func TestRankCandidatesWrappedCacheMissIsQuiet(t *testing.T) {
	model := buildModel(t,
		[]string{"Monday"},
		[]schedule.Period{{Code: "P1", Time: "08:00"}, {Code: "P2", Time: "09:00"}},
		map[string]map[string][]string{
			"A": {"Monday": {"Math7", ""}},
			"B": {"Monday": {"", "Sci7"}},
		},
	)
	core, logs := observer.New(zap.WarnLevel)
	svc := NewAvailabilityService(model, &stubHistoryReader{}, wrappedMissCache{}, nil, zap.New(core), time.Minute)
	svc.now = fixedClock("2026-03-02")

	resp, err := svc.RankCandidates(context.Background(), "Monday", "P1", "A")
	require.NoError(t, err)
	assert.Len(t, resp.Candidates, 1)
	assert.Equal(t, 0, logs.FilterMessage("availability cache read failed").Len())
}

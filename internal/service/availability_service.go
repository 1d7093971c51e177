package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/subdesk-api/internal/dto"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type availabilityHistoryReader interface {
	WasChosenOn(ctx context.Context, teacher, date string) (bool, error)
	PriorCount(ctx context.Context, teacher string) (int, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AvailabilityService ranks substitute candidates for an absence. The
// schedule model is immutable, so rankings only change when history changes;
// responses are cached per (day, period, absent, date) and invalidated by the
// assignment workflow after every write.
type AvailabilityService struct {
	model    *schedule.Model
	history  availabilityHistoryReader
	cache    availabilityCache
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewAvailabilityService constructs an AvailabilityService. cache may be nil.
func NewAvailabilityService(model *schedule.Model, history availabilityHistoryReader, cache availabilityCache, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		model:    model,
		history:  history,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// AvailabilityCacheKeyPattern matches every cached availability response.
const AvailabilityCacheKeyPattern = "availability:*"

// RankCandidates returns the free teachers for (day, periodCode), excluding
// the absent teacher and anyone with zero engaged periods that day, ordered
// by fit and fairness signals.
func (s *AvailabilityService) RankCandidates(ctx context.Context, day, periodCode, absentTeacher string) (*dto.AvailabilityResponse, error) {
	idx, err := s.model.PeriodIndex(periodCode)
	if err != nil {
		return nil, err
	}

	today := s.now().Format(dateLayout)
	cacheKey := fmt.Sprintf("availability:%s:%s:%s:%s", day, periodCode, absentTeacher, today)
	if s.cache != nil {
		var cached dto.AvailabilityResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	yesterday := s.now().AddDate(0, 0, -1).Format(dateLayout)
	classCode, resolved := s.model.ResolveClass(absentTeacher, day, periodCode)
	totalPeriods := len(s.model.Periods())

	candidates := []dto.Candidate{}
	for _, teacher := range s.model.TeacherNames() {
		if teacher == absentTeacher {
			continue
		}
		if s.model.Slot(teacher, day, idx).Occupied {
			continue
		}
		busy := s.model.BusyCount(teacher, day)
		// Free at this period but zero periods all day means the teacher
		// is off that day entirely, not merely unoccupied.
		if busy == 0 {
			continue
		}

		queryStart := time.Now()
		chosenYesterday, err := s.history.WasChosenOn(ctx, teacher, yesterday)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read assignment history")
		}
		priorCount, err := s.history.PriorCount(ctx, teacher)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read assignment history")
		}
		s.metrics.ObserveDBQuery("assignment_history", time.Since(queryStart))

		fit := dto.FitUnknown
		if resolved {
			if s.model.Teaches(teacher, classCode) {
				fit = dto.FitTeaches
			} else {
				fit = dto.FitNotTeaching
			}
		}

		candidates = append(candidates, dto.Candidate{
			Teacher:         teacher,
			Fit:             fit,
			Load:            fmt.Sprintf("%d/%d", busy, totalPeriods),
			BusyPeriods:     busy,
			TotalPeriods:    totalPeriods,
			ChosenYesterday: chosenYesterday,
			PriorCount:      priorCount,
			Teaches:         s.model.Classes(teacher),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j], resolved)
	})

	resp := &dto.AvailabilityResponse{
		Day:                day,
		PeriodCode:         periodCode,
		AbsentTeacher:      absentTeacher,
		ClassCode:          classCode,
		AbsentClassesToday: s.model.ClassesOn(absentTeacher, day),
		EngagedPeriods:     s.model.EngagedPeriods(absentTeacher, day),
		Candidates:         candidates,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, resp, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}

	return resp, nil
}

// candidateLess is the documented tie-break chain. When a class code was
// resolved: teachers of that class first, then heavier daily load, then
// not-chosen-yesterday, then fewer prior assignments, then name. Without a
// resolved class the lighter load leads instead. Load compares numerically
// on the busy count; the "busy/total" string is display-only.
func candidateLess(a, b dto.Candidate, classResolved bool) bool {
	if classResolved {
		if a.Fit != b.Fit {
			return a.Fit == dto.FitTeaches
		}
		if a.BusyPeriods != b.BusyPeriods {
			return a.BusyPeriods > b.BusyPeriods
		}
	} else if a.BusyPeriods != b.BusyPeriods {
		return a.BusyPeriods < b.BusyPeriods
	}
	if a.ChosenYesterday != b.ChosenYesterday {
		return !a.ChosenYesterday
	}
	if a.PriorCount != b.PriorCount {
		return a.PriorCount < b.PriorCount
	}
	return a.Teacher < b.Teacher
}

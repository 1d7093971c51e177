package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
)

// Period identifies one column of the weekly grid. Code is the stable
// identifier, Time is display-only.
type Period struct {
	Code string `json:"code"`
	Time string `json:"time"`
}

// Slot is one (teacher, day, period) cell of the grid: either free or
// occupied by a class code. Values are normalised at load time so the rest
// of the system never inspects raw strings.
type Slot struct {
	Occupied bool
	Class    string
}

// Model is the immutable in-memory weekly teaching grid. It is built once at
// startup and injected into every component that needs it; nothing mutates it
// afterwards, so shared concurrent reads are safe.
type Model struct {
	days      []string
	periods   []Period
	teachers  map[string]map[string][]Slot
	names     []string
	periodIdx map[string]int
	dayRank   map[string]int
}

type rawDocument struct {
	Metadata *rawMetadata                    `json:"metadata"`
	Teachers *map[string]map[string][]string `json:"teachers"`
}

type rawMetadata struct {
	Days    *[]string    `json:"days"`
	Periods *[]rawPeriod `json:"periods"`
}

type rawPeriod struct {
	Code *string `json:"code"`
	Time *string `json:"time"`
}

// Load reads and validates the schedule document at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrScheduleFormat.Code, appErrors.ErrScheduleFormat.Status, "read schedule file")
	}
	return Parse(data)
}

// Parse validates the schedule document and builds the model. Validation
// happens once here; downstream code assumes a well-formed model.
func Parse(data []byte) (*Model, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrScheduleFormat.Code, appErrors.ErrScheduleFormat.Status, "decode schedule document")
	}
	if doc.Metadata == nil || doc.Teachers == nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleFormat, "schedule missing 'metadata' or 'teachers'")
	}
	if doc.Metadata.Days == nil || doc.Metadata.Periods == nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleFormat, "'metadata.days' or 'metadata.periods' malformed")
	}

	periods := make([]Period, 0, len(*doc.Metadata.Periods))
	periodIdx := make(map[string]int, len(*doc.Metadata.Periods))
	for i, p := range *doc.Metadata.Periods {
		if p.Code == nil || p.Time == nil {
			return nil, appErrors.Clone(appErrors.ErrScheduleFormat, "each period must have 'code' and 'time'")
		}
		if _, dup := periodIdx[*p.Code]; dup {
			return nil, appErrors.Clone(appErrors.ErrScheduleFormat, fmt.Sprintf("duplicate period code %q", *p.Code))
		}
		periods = append(periods, Period{Code: *p.Code, Time: *p.Time})
		periodIdx[*p.Code] = i
	}

	days := make([]string, len(*doc.Metadata.Days))
	copy(days, *doc.Metadata.Days)
	dayRank := make(map[string]int, len(days))
	for i, d := range days {
		if _, dup := dayRank[d]; !dup {
			dayRank[d] = i
		}
	}

	teachers := make(map[string]map[string][]Slot, len(*doc.Teachers))
	names := make([]string, 0, len(*doc.Teachers))
	for name, byDay := range *doc.Teachers {
		slots := make(map[string][]Slot, len(byDay))
		for day, values := range byDay {
			row := make([]Slot, len(values))
			for i, v := range values {
				class := strings.TrimSpace(v)
				if class != "" {
					row[i] = Slot{Occupied: true, Class: class}
				}
			}
			slots[day] = row
		}
		teachers[name] = slots
		names = append(names, name)
	}
	sort.Strings(names)

	return &Model{
		days:      days,
		periods:   periods,
		teachers:  teachers,
		names:     names,
		periodIdx: periodIdx,
		dayRank:   dayRank,
	}, nil
}

// Days returns the canonical week order.
func (m *Model) Days() []string {
	out := make([]string, len(m.days))
	copy(out, m.days)
	return out
}

// Periods returns the defined periods in grid order.
func (m *Model) Periods() []Period {
	out := make([]Period, len(m.periods))
	copy(out, m.periods)
	return out
}

// TeacherNames returns all teacher names sorted ascending.
func (m *Model) TeacherNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// HasTeacher reports whether the teacher appears in the grid.
func (m *Model) HasTeacher(name string) bool {
	_, ok := m.teachers[name]
	return ok
}

// PeriodIndex resolves a period code to its positional index.
func (m *Model) PeriodIndex(code string) (int, error) {
	idx, ok := m.periodIdx[code]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrUnknownPeriod, fmt.Sprintf("unknown period code: %s", code))
	}
	return idx, nil
}

// PeriodTime returns the display time for a period code, empty when unknown.
func (m *Model) PeriodTime(code string) string {
	if idx, ok := m.periodIdx[code]; ok {
		return m.periods[idx].Time
	}
	return ""
}

// Slot returns the cell for (teacher, day, idx). Indices beyond the stored
// row length are free, as are unknown teachers and days.
func (m *Model) Slot(teacher, day string, idx int) Slot {
	row := m.teachers[teacher][day]
	if idx < 0 || idx >= len(row) {
		return Slot{}
	}
	return row[idx]
}

// BusyCount returns the number of occupied periods for the teacher on day.
func (m *Model) BusyCount(teacher, day string) int {
	busy := 0
	for _, s := range m.teachers[teacher][day] {
		if s.Occupied {
			busy++
		}
	}
	return busy
}

// Teaches reports whether the teacher has the class code anywhere in their
// week.
func (m *Model) Teaches(teacher, class string) bool {
	if strings.TrimSpace(class) == "" {
		return false
	}
	byDay, ok := m.teachers[teacher]
	if !ok {
		return false
	}
	for _, day := range m.days {
		for _, s := range byDay[day] {
			if s.Occupied && s.Class == class {
				return true
			}
		}
	}
	return false
}

// Classes returns the de-duplicated class codes the teacher teaches across
// the whole week, in first-seen canonical order.
func (m *Model) Classes(teacher string) []string {
	return m.classes(teacher, m.days)
}

// ClassesOn restricts Classes to a single day.
func (m *Model) ClassesOn(teacher, day string) []string {
	return m.classes(teacher, []string{day})
}

func (m *Model) classes(teacher string, days []string) []string {
	classes := []string{}
	byDay, ok := m.teachers[teacher]
	if !ok {
		return classes
	}
	seen := make(map[string]struct{})
	for _, day := range days {
		for _, s := range byDay[day] {
			if !s.Occupied {
				continue
			}
			if _, dup := seen[s.Class]; dup {
				continue
			}
			seen[s.Class] = struct{}{}
			classes = append(classes, s.Class)
		}
	}
	return classes
}

// ResolveClass looks up the teacher's own slot at (day, periodCode) and
// returns its class code. A blank slot, unknown period, or out-of-range index
// is a normal, representable outcome, never an error.
func (m *Model) ResolveClass(teacher, day, periodCode string) (string, bool) {
	idx, ok := m.periodIdx[periodCode]
	if !ok {
		return "", false
	}
	s := m.Slot(teacher, day, idx)
	if !s.Occupied {
		return "", false
	}
	return s.Class, true
}

// EngagedPeriods returns the periods where the teacher is occupied on day.
func (m *Model) EngagedPeriods(teacher, day string) []Period {
	engaged := []Period{}
	row := m.teachers[teacher][day]
	for i, s := range row {
		if i >= len(m.periods) {
			break
		}
		if s.Occupied {
			engaged = append(engaged, m.periods[i])
		}
	}
	return engaged
}

// GridRow returns one display value per defined period for (teacher, day),
// empty string for free slots.
func (m *Model) GridRow(teacher, day string) []string {
	vals := make([]string, len(m.periods))
	for i := range m.periods {
		if s := m.Slot(teacher, day, i); s.Occupied {
			vals[i] = s.Class
		}
	}
	return vals
}

// DayRank returns the day's position in the canonical week order; unknown
// days rank after all known ones.
func (m *Model) DayRank(day string) int {
	if r, ok := m.dayRank[day]; ok {
		return r
	}
	return len(m.days)
}

// PeriodRank returns the period's grid position; unknown codes rank last.
func (m *Model) PeriodRank(code string) int {
	if r, ok := m.periodIdx[code]; ok {
		return r
	}
	return len(m.periods)
}

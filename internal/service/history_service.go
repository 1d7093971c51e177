package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/subdesk-api/internal/models"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	appErrors "github.com/noah-isme/subdesk-api/pkg/errors"
	"github.com/noah-isme/subdesk-api/pkg/export"
)

// exportHeaders are the display columns of the tabular snapshot, in order.
var exportHeaders = []string{
	"date",
	"day",
	"period_code",
	"period_time",
	"absent_teacher",
	"assigned_teacher",
	"class_if_known",
	"notes",
}

type historyReader interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	ExportAll(ctx context.Context) ([]models.Assignment, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// HistoryService is the filtered read-model over recorded assignments.
type HistoryService struct {
	repo   historyReader
	model  *schedule.Model
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(repo historyReader, model *schedule.Model, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *HistoryService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, model: model, csv: csv, pdf: pdf, logger: logger}
}

// Query returns matching assignments ordered date descending, then by the
// schedule metadata's canonical day and period order.
func (s *HistoryService) Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query assignment history")
	}
	s.sortCanonical(rows)

	if filter.PageSize <= 0 {
		return rows, nil, nil
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	total := len(rows)
	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	start := (page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	pagination := &models.Pagination{
		Page:       page,
		PageSize:   filter.PageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
	return rows[start:end], pagination, nil
}

// Export renders every assignment in the default ordering. Returns payload,
// filename and content type.
func (s *HistoryService) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	rows, err := s.repo.ExportAll(ctx)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments for export")
	}
	s.sortCanonical(rows)
	dataset := assignmentDataset(rows)

	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "substitutions.csv", "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Substitute Assignments")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "substitutions.pdf", "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// sortCanonical orders rows date descending, then by canonical day and
// period rank from the schedule metadata. Names absent from the metadata
// sink below known ones; raw strings break remaining ties so the order is
// total.
func (s *HistoryService) sortCanonical(rows []models.Assignment) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if ra, rb := s.model.DayRank(a.Day), s.model.DayRank(b.Day); ra != rb {
			return ra < rb
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if ra, rb := s.model.PeriodRank(a.PeriodCode), s.model.PeriodRank(b.PeriodCode); ra != rb {
			return ra < rb
		}
		return a.PeriodCode < b.PeriodCode
	})
}

func assignmentDataset(rows []models.Assignment) export.Dataset {
	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":             row.Date,
			"day":              row.Day,
			"period_code":      row.PeriodCode,
			"period_time":      row.PeriodTime,
			"absent_teacher":   row.AbsentTeacher,
			"assigned_teacher": row.AssignedTeacher,
			"class_if_known":   stringValue(row.ClassIfKnown),
			"notes":            stringValue(row.Notes),
		})
	}
	return dataset
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

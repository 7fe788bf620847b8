package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/export"
)

type markLister interface {
	ListMarks(ctx context.Context, scheduleID, subjectCode, sectionID string) ([]models.MarkDetail, error)
}

// ExportService renders mark reports as CSV or PDF downloads.
type ExportService struct {
	marks   markLister
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	enabled bool
	logger  *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(marks markLister, enabled bool, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		marks:   marks,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		enabled: enabled,
		logger:  logger,
	}
}

var markReportHeaders = []string{"Roll No", "Student", "Score", "Max", "Grade", "Status"}

func markReportDataset(details []models.MarkDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(details))
	for _, d := range details {
		grade := ""
		if d.Grade != nil {
			grade = *d.Grade
		}
		rows = append(rows, map[string]string{
			"Roll No": d.RollNo,
			"Student": d.StudentName,
			"Score":   strconv.FormatFloat(d.Score, 'f', 2, 64),
			"Max":     strconv.FormatFloat(d.MaxScore, 'f', 2, 64),
			"Grade":   grade,
			"Status":  string(d.Status),
		})
	}
	return export.Dataset{Headers: markReportHeaders, Rows: rows}
}

// MarkReportCSV renders the section's mark listing as CSV bytes.
func (s *ExportService) MarkReportCSV(ctx context.Context, scheduleID, subjectCode, sectionID string) ([]byte, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	details, err := s.marks.ListMarks(ctx, scheduleID, subjectCode, sectionID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(markReportDataset(details))
}

// MarkReportPDF renders the section's mark listing as a PDF document.
func (s *ExportService) MarkReportPDF(ctx context.Context, scheduleID, subjectCode, sectionID string) ([]byte, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	details, err := s.marks.ListMarks(ctx, scheduleID, subjectCode, sectionID)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Mark Report %s", subjectCode)
	return s.pdf.Render(markReportDataset(details), title)
}

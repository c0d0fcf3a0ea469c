package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"

	"github.com/xuri/excelize/v2"
)

const (
	gradesSheet      = "Grades"
	maxExportRows    = 10000
	exportTimeLayout = "2006-01-02 15:04:05"
	XLSXContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var gradeColumns = []string{"id", "filename", "status", "suggested_grade", "feedback", "error", "uploaded_by", "created_at", "updated_at"}

type ReportService struct {
	assignments repository.AssignmentRepository
}

func NewReportService(assignments repository.AssignmentRepository) *ReportService {
	return &ReportService{assignments: assignments}
}

// ExportGrades writes the most recent assignments as a single-sheet xlsx workbook.
func (s *ReportService) ExportGrades(ctx context.Context, w io.Writer) error {
	rows, err := s.assignments.List(ctx, maxExportRows)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(gradeColumns))
	for i, c := range gradeColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(gradesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(gradesSheet, 1, 1, bold)
	}

	for i, a := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := gradeRow(a)
		if err := f.SetSheetRow(gradesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func gradeRow(a model.Assignment) []interface{} {
	var grade interface{}
	if a.SuggestedGrade != nil {
		grade = *a.SuggestedGrade
	}
	return []interface{}{
		a.ID,
		a.Filename,
		string(a.Status),
		grade,
		deref(a.Feedback),
		deref(a.Error),
		deref(a.UploadedBy),
		a.CreatedAt.UTC().Format(exportTimeLayout),
		a.UpdatedAt.UTC().Format(exportTimeLayout),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportFilename is the attachment name for an export taken at t.
func ExportFilename(t time.Time) string {
	return "grades-" + t.UTC().Format("20060102-150405") + ".xlsx"
}

package attendance

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Attendance"

// MaxExportDays bounds the date range of one export.
const MaxExportDays = 366

// ExportRange validates an inclusive date range. Empty bounds default to the
// last 30 days ending today.
func (s *Service) ExportRange(from, to string) (string, string, error) {
	end, err := s.normalizeDate(to)
	if err != nil {
		return "", "", err
	}
	endT, _ := time.Parse(DateLayout, end)
	start := endT.AddDate(0, 0, -29).Format(DateLayout)
	if from != "" {
		if start, err = s.normalizeDate(from); err != nil {
			return "", "", err
		}
	}
	startT, _ := time.Parse(DateLayout, start)
	if startT.After(endT) || endT.Sub(startT) > MaxExportDays*24*time.Hour {
		return "", "", ErrInvalidDate
	}
	return start, end, nil
}

// Export writes an xlsx workbook for one class: a row per student, a column
// per date that has any record, and a present percentage per student.
func (s *Service) Export(ctx context.Context, teacherID, classID, from, to string, w io.Writer) error {
	from, to, err := s.ExportRange(from, to)
	if err != nil {
		return err
	}
	_, students, err := s.roster.ClassRoster(ctx, teacherID, classID)
	if err != nil {
		return err
	}
	recs, err := s.repo.ForClassRange(ctx, classID, from, to)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}

	byStudent := make(map[string]map[string]string)
	seen := make(map[string]bool)
	var dates []string
	for _, r := range recs {
		if byStudent[r.StudentID] == nil {
			byStudent[r.StudentID] = make(map[string]string)
		}
		byStudent[r.StudentID][r.Date] = r.Status
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Strings(dates)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	header := []any{"Name", "Student ID", "Email"}
	for _, d := range dates {
		header = append(header, d)
	}
	header = append(header, "Present %")
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}

	for i, st := range students {
		row := []any{st.Name, deref(st.StudentID), deref(st.Email)}
		present := 0
		for _, d := range dates {
			status, ok := byStudent[st.ID][d]
			if !ok {
				status = StatusAbsent
			}
			if status == StatusPresent {
				present++
			}
			row = append(row, status)
		}
		pct := 0
		if len(dates) > 0 {
			pct = int(math.Round(100 * float64(present) / float64(len(dates))))
		}
		row = append(row, pct)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}

// ImportStudents reads the first sheet of an .xlsx workbook into the class
// roster. Column A is the name, B the email, C the student id; the first row
// is a header. Rows without a name are skipped, invalid rows are reported.
func (s *Service) ImportStudents(ctx context.Context, teacherID, classID string, r io.Reader) (ImportResult, error) {
	class, err := s.Class(ctx, teacherID, classID)
	if err != nil {
		return ImportResult{}, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, &ValidationError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn("close workbook", zap.Error(err))
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return ImportResult{}, &ValidationError{Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var res ImportResult
	var batch []Student
	now := s.now().UTC()
	for i, row := range rows {
		if i == 0 {
			continue
		}
		in := StudentInput{Name: cell(row, 0), Email: cell(row, 1), StudentID: cell(row, 2), ClassID: class.ID}
		in.normalize()
		if in.Name == "" {
			res.Skipped++
			continue
		}
		if err := s.check(in); err != nil {
			res.Skipped++
			res.Problems = append(res.Problems, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		classID := class.ID
		batch = append(batch, Student{
			ID:        uuid.NewString(),
			TeacherID: teacherID,
			ClassID:   &classID,
			Name:      in.Name,
			Email:     optional(in.Email),
			StudentID: optional(in.StudentID),
			CreatedAt: now,
		})
	}

	if len(batch) > 0 {
		if err := s.repo.InsertStudents(ctx, batch...); err != nil {
			return ImportResult{}, fmt.Errorf("insert students: %w", err)
		}
	}
	res.Imported = len(batch)
	s.log.Info("roster imported",
		zap.String("class_id", class.ID), zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
	return res, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

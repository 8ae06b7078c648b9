package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classroll/internal/metrics"
	"classroll/internal/roster"
)

var (
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
	ErrInvalidStatus  = errors.New("status must be present, absent, late or excused")
	ErrUnknownStudent = errors.New("student is not on this class roster")
	ErrNotesTooLong   = errors.New("notes are too long")
)

// MaxNotesLen bounds the free-text note kept with a record.
const MaxNotesLen = 500

// DefaultHistoryLimit is how many records the student dashboard shows.
const DefaultHistoryLimit = 10

// Roster resolves a teacher's class and its students.
type Roster interface {
	ClassRoster(ctx context.Context, teacherID, classID string) (roster.Class, []roster.Student, error)
}

// StudentFinder resolves a student account's roster entry and class.
type StudentFinder interface {
	StudentByEmail(ctx context.Context, email string) (*roster.Student, error)
	ClassByID(ctx context.Context, id string) (*roster.Class, error)
}

// Service implements the attendance editor, QR check-ins and the student
// dashboard.
type Service struct {
	repo     *Repository
	roster   Roster
	students StudentFinder
	log      *zap.Logger
	now      func() time.Time
}

// NewService wires the attendance service.
func NewService(repo *Repository, r Roster, students StudentFinder, log *zap.Logger) *Service {
	return &Service{repo: repo, roster: r, students: students, log: log, now: time.Now}
}

// Today is the current date in DateLayout.
func (s *Service) Today() string {
	return s.now().Format(DateLayout)
}

// normalizeDate defaults an empty date to today and rejects anything that
// is not a calendar date.
func (s *Service) normalizeDate(date string) (string, error) {
	if date == "" {
		return s.Today(), nil
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

// Sheet loads the class roster and the stored statuses and notes for date.
// Students without a row are absent.
func (s *Service) Sheet(ctx context.Context, teacherID, classID, date string) (Sheet, error) {
	date, err := s.normalizeDate(date)
	if err != nil {
		return Sheet{}, err
	}
	class, students, err := s.roster.ClassRoster(ctx, teacherID, classID)
	if err != nil {
		return Sheet{}, err
	}
	recs, err := s.repo.ForClassDate(ctx, classID, date)
	if err != nil {
		return Sheet{}, fmt.Errorf("load attendance: %w", err)
	}
	stored := make(map[string]Record, len(recs))
	for _, r := range recs {
		stored[r.StudentID] = r
	}
	statuses := make(map[string]string, len(students))
	notes := make(map[string]string)
	for _, st := range students {
		r, ok := stored[st.ID]
		if !ok {
			statuses[st.ID] = StatusAbsent
			continue
		}
		statuses[st.ID] = r.Status
		if r.Notes != nil {
			notes[st.ID] = *r.Notes
		}
	}
	if students == nil {
		students = []roster.Student{}
	}
	return Sheet{Class: class, Date: date, Students: students, Statuses: statuses, Notes: notes}, nil
}

// Save replaces the attendance of (class, date) with entries, keyed by
// student row id. Every student on the roster gets a row; those missing from
// entries, or given an empty status, are stored as absent. Blank notes are
// stored as NULL. The replacement is atomic.
func (s *Service) Save(ctx context.Context, teacherID, classID, date string, entries map[string]Entry) (Sheet, error) {
	date, err := s.normalizeDate(date)
	if err != nil {
		return Sheet{}, err
	}
	class, students, err := s.roster.ClassRoster(ctx, teacherID, classID)
	if err != nil {
		return Sheet{}, err
	}

	onRoster := make(map[string]bool, len(students))
	for _, st := range students {
		onRoster[st.ID] = true
	}
	for id, e := range entries {
		if !onRoster[id] {
			return Sheet{}, fmt.Errorf("%w: %s", ErrUnknownStudent, id)
		}
		if e.Status != "" && !ValidStatus(e.Status) {
			return Sheet{}, fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
		}
		if len(e.Notes) > MaxNotesLen {
			return Sheet{}, fmt.Errorf("%w: %d characters", ErrNotesTooLong, len(e.Notes))
		}
	}

	now := s.now().UTC()
	recs := make([]Record, 0, len(students))
	statuses := make(map[string]string, len(students))
	notes := make(map[string]string)
	for _, st := range students {
		e := entries[st.ID]
		status := e.Status
		if status == "" {
			status = StatusAbsent
		}
		statuses[st.ID] = status
		var note *string
		if n := strings.TrimSpace(e.Notes); n != "" {
			note = &n
			notes[st.ID] = n
		}
		recs = append(recs, Record{
			ID:        uuid.NewString(),
			StudentID: st.ID,
			ClassID:   class.ID,
			TeacherID: teacherID,
			Date:      date,
			Status:    status,
			Notes:     note,
			CreatedAt: now,
		})
	}
	if err := s.repo.Replace(ctx, class.ID, date, recs); err != nil {
		return Sheet{}, fmt.Errorf("save attendance: %w", err)
	}
	metrics.AttendanceSaves.Inc()
	s.log.Info("attendance saved",
		zap.String("class_id", class.ID), zap.String("date", date), zap.Int("students", len(recs)))

	if students == nil {
		students = []roster.Student{}
	}
	return Sheet{Class: class, Date: date, Students: students, Statuses: statuses, Notes: notes}, nil
}

// Record stores a QR check-in as present. Repeated check-ins converge on one
// row, and a status the teacher set other than absent is kept.
func (s *Service) Record(ctx context.Context, c Checkin) (bool, error) {
	date, err := s.normalizeDate(c.Date)
	if err != nil {
		return false, err
	}
	written, err := s.repo.MarkPresent(ctx, Record{
		ID:        uuid.NewString(),
		StudentID: c.StudentID,
		ClassID:   c.ClassID,
		TeacherID: c.TeacherID,
		Date:      date,
		Status:    StatusPresent,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("record check-in: %w", err)
	}
	if written {
		metrics.CheckinsRecorded.Inc()
	}
	return written, nil
}

// History returns a roster entry's most recent records, newest first.
func (s *Service) History(ctx context.Context, studentID string, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	items, err := s.repo.ForStudent(ctx, studentID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []HistoryItem{}
	}
	return items, nil
}

// Percentage is the share of present records, rounded; 0 for no records.
// Late and excused do not count as present.
func Percentage(items []HistoryItem) int {
	if len(items) == 0 {
		return 0
	}
	present := 0
	for _, it := range items {
		if it.Status == StatusPresent {
			present++
		}
	}
	return int(math.Round(100 * float64(present) / float64(len(items))))
}

// Dashboard gathers the roster entry, class and recent attendance of the
// student account with this email. A student without a roster entry gets an
// empty dashboard.
func (s *Service) Dashboard(ctx context.Context, email string) (Dashboard, error) {
	st, err := s.students.StudentByEmail(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}
	if st == nil {
		return Dashboard{Recent: []HistoryItem{}}, nil
	}
	d := Dashboard{Student: st}
	if st.ClassID != nil {
		if d.Class, err = s.students.ClassByID(ctx, *st.ClassID); err != nil {
			return Dashboard{}, err
		}
	}
	if d.Recent, err = s.History(ctx, st.ID, DefaultHistoryLimit); err != nil {
		return Dashboard{}, err
	}
	d.Percentage = Percentage(d.Recent)
	return d, nil
}

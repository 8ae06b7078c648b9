package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrStudentNotFound = errors.New("student not found")
)

// ValidationError wraps field validation failures.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ClassInput is the create/update form for a class.
type ClassInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=120"`
	Subject      string   `json:"subject" validate:"max=120"`
	Room         string   `json:"room" validate:"max=60"`
	ScheduleDays []string `json:"schedule_days" validate:"dive,weekday"`
	ScheduleTime string   `json:"schedule_time" validate:"omitempty,clock"`
}

// StudentInput is the create/update form for a roster entry.
type StudentInput struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Email     string `json:"email" validate:"omitempty,email"`
	StudentID string `json:"student_id" validate:"max=60"`
	ClassID   string `json:"class_id"`
}

// Service implements the class and student pages.
type Service struct {
	repo     *Repository
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a roster service.
func NewService(repo *Repository, log *zap.Logger) *Service {
	v := validator.New()
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		day := fl.Field().String()
		for _, d := range Weekdays {
			if d == day {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return &Service{repo: repo, validate: v, log: log, now: time.Now}
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func (in *ClassInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *StudentInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.ClassID = strings.TrimSpace(in.ClassID)
}

// CreateClass adds a class owned by teacherID.
func (s *Service) CreateClass(ctx context.Context, teacherID string, in ClassInput) (Class, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return Class{}, err
	}
	c := Class{
		ID:           uuid.NewString(),
		TeacherID:    teacherID,
		Name:         in.Name,
		Subject:      optional(in.Subject),
		Room:         optional(in.Room),
		ScheduleDays: in.ScheduleDays,
		ScheduleTime: optional(in.ScheduleTime),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.InsertClass(ctx, c); err != nil {
		return Class{}, fmt.Errorf("insert class: %w", err)
	}
	return c, nil
}

// UpdateClass edits a class owned by teacherID.
func (s *Service) UpdateClass(ctx context.Context, teacherID, id string, in ClassInput) (Class, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return Class{}, err
	}
	existing, err := s.repo.GetClass(ctx, teacherID, id)
	if err != nil {
		return Class{}, err
	}
	if existing == nil {
		return Class{}, ErrClassNotFound
	}
	existing.Name = in.Name
	existing.Subject = optional(in.Subject)
	existing.Room = optional(in.Room)
	existing.ScheduleDays = in.ScheduleDays
	existing.ScheduleTime = optional(in.ScheduleTime)
	if _, err := s.repo.UpdateClass(ctx, *existing); err != nil {
		return Class{}, fmt.Errorf("update class: %w", err)
	}
	return *existing, nil
}

// DeleteClass removes a class; its attendance and QR sessions go with it and
// its students become unassigned.
func (s *Service) DeleteClass(ctx context.Context, teacherID, id string) error {
	ok, err := s.repo.DeleteClass(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClassNotFound
	}
	return nil
}

// Class returns a class owned by teacherID.
func (s *Service) Class(ctx context.Context, teacherID, id string) (Class, error) {
	c, err := s.repo.GetClass(ctx, teacherID, id)
	if err != nil {
		return Class{}, err
	}
	if c == nil {
		return Class{}, ErrClassNotFound
	}
	return *c, nil
}

// Classes lists a teacher's classes.
func (s *Service) Classes(ctx context.Context, teacherID string) ([]Class, error) {
	return s.repo.ListClasses(ctx, teacherID)
}

func (s *Service) ownedClassID(ctx context.Context, teacherID, classID string) (*string, error) {
	if classID == "" {
		return nil, nil
	}
	c, err := s.repo.GetClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClassNotFound
	}
	return &c.ID, nil
}

// CreateStudent adds a roster entry, optionally assigned to one of the teacher's classes.
func (s *Service) CreateStudent(ctx context.Context, teacherID string, in StudentInput) (Student, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return Student{}, err
	}
	classID, err := s.ownedClassID(ctx, teacherID, in.ClassID)
	if err != nil {
		return Student{}, err
	}
	st := Student{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		ClassID:   classID,
		Name:      in.Name,
		Email:     optional(in.Email),
		StudentID: optional(in.StudentID),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertStudents(ctx, st); err != nil {
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	return st, nil
}

// UpdateStudent edits a roster entry.
func (s *Service) UpdateStudent(ctx context.Context, teacherID, id string, in StudentInput) (Student, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return Student{}, err
	}
	existing, err := s.repo.GetStudent(ctx, teacherID, id)
	if err != nil {
		return Student{}, err
	}
	if existing == nil {
		return Student{}, ErrStudentNotFound
	}
	classID, err := s.ownedClassID(ctx, teacherID, in.ClassID)
	if err != nil {
		return Student{}, err
	}
	existing.ClassID = classID
	existing.ClassName = nil
	existing.Name = in.Name
	existing.Email = optional(in.Email)
	existing.StudentID = optional(in.StudentID)
	if _, err := s.repo.UpdateStudent(ctx, *existing); err != nil {
		return Student{}, fmt.Errorf("update student: %w", err)
	}
	return *existing, nil
}

// DeleteStudent removes a roster entry and its attendance rows.
func (s *Service) DeleteStudent(ctx context.Context, teacherID, id string) error {
	ok, err := s.repo.DeleteStudent(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStudentNotFound
	}
	return nil
}

// Student returns a roster entry owned by teacherID.
func (s *Service) Student(ctx context.Context, teacherID, id string) (Student, error) {
	st, err := s.repo.GetStudent(ctx, teacherID, id)
	if err != nil {
		return Student{}, err
	}
	if st == nil {
		return Student{}, ErrStudentNotFound
	}
	return *st, nil
}

// Students lists the teacher's whole roster.
func (s *Service) Students(ctx context.Context, teacherID string) ([]Student, error) {
	return s.repo.ListStudents(ctx, teacherID)
}

// ClassRoster lists the students of one of the teacher's classes.
func (s *Service) ClassRoster(ctx context.Context, teacherID, classID string) (Class, []Student, error) {
	c, err := s.Class(ctx, teacherID, classID)
	if err != nil {
		return Class{}, nil, err
	}
	students, err := s.repo.StudentsInClass(ctx, classID)
	return c, students, err
}

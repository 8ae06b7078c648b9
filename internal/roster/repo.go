package roster

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"classroll/internal/store"
)

// Repository persists classes and students in SQL.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const classColumns = `id, teacher_id, name, subject, room, schedule_days, schedule_time, created_at`

func scanClass(row interface{ Scan(...any) error }) (Class, error) {
	var c Class
	var days sql.NullString
	err := row.Scan(&c.ID, &c.TeacherID, &c.Name, &c.Subject, &c.Room, &days, &c.ScheduleTime, &c.CreatedAt)
	if days.Valid && days.String != "" {
		c.ScheduleDays = strings.Split(days.String, ",")
	}
	return c, err
}

func joinDays(days []string) any {
	if len(days) == 0 {
		return nil
	}
	return strings.Join(days, ",")
}

// InsertClass writes a new class.
func (r *Repository) InsertClass(ctx context.Context, c Class) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO classes (`+classColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.TeacherID, c.Name, store.NullString(c.Subject), store.NullString(c.Room),
		joinDays(c.ScheduleDays), store.NullString(c.ScheduleTime), c.CreatedAt)
	return err
}

// UpdateClass overwrites the editable columns of a teacher's class.
func (r *Repository) UpdateClass(ctx context.Context, c Class) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes
		SET name = $1, subject = $2, room = $3, schedule_days = $4, schedule_time = $5
		WHERE id = $6 AND teacher_id = $7
	`, c.Name, store.NullString(c.Subject), store.NullString(c.Room),
		joinDays(c.ScheduleDays), store.NullString(c.ScheduleTime), c.ID, c.TeacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteClass removes a teacher's class.
func (r *Repository) DeleteClass(ctx context.Context, teacherID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetClass returns a teacher's class, or nil.
func (r *Repository) GetClass(ctx context.Context, teacherID, id string) (*Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	c, err := scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ClassByID returns any class by id regardless of owner, or nil.
func (r *Repository) ClassByID(ctx context.Context, id string) (*Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id)
	c, err := scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListClasses returns a teacher's classes, newest first.
func (r *Repository) ListClasses(ctx context.Context, teacherID string) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+classColumns+` FROM classes
		WHERE teacher_id = $1
		ORDER BY created_at DESC, name
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

const studentSelect = `
	SELECT s.id, s.teacher_id, s.class_id, c.name, s.name, s.email, s.student_id, s.created_at
	FROM students s LEFT JOIN classes c ON c.id = s.class_id`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.TeacherID, &s.ClassID, &s.ClassName, &s.Name, &s.Email, &s.StudentID, &s.CreatedAt)
	return s, err
}

func (r *Repository) queryStudents(ctx context.Context, q store.Querier, query string, args ...any) ([]Student, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// InsertStudents writes roster entries in one transaction.
func (r *Repository) InsertStudents(ctx context.Context, students ...Student) error {
	return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, s := range students {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO students (id, teacher_id, class_id, name, email, student_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, s.ID, s.TeacherID, store.NullString(s.ClassID), s.Name,
				store.NullString(s.Email), store.NullString(s.StudentID), s.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStudent overwrites the editable columns of a teacher's student.
func (r *Repository) UpdateStudent(ctx context.Context, s Student) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET class_id = $1, name = $2, email = $3, student_id = $4
		WHERE id = $5 AND teacher_id = $6
	`, store.NullString(s.ClassID), s.Name, store.NullString(s.Email), store.NullString(s.StudentID), s.ID, s.TeacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteStudent removes a teacher's student.
func (r *Repository) DeleteStudent(ctx context.Context, teacherID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetStudent returns a teacher's student, or nil.
func (r *Repository) GetStudent(ctx context.Context, teacherID, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, studentSelect+` WHERE s.id = $1 AND s.teacher_id = $2`, id, teacherID)
	s, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListStudents returns a teacher's whole roster, newest first.
func (r *Repository) ListStudents(ctx context.Context, teacherID string) ([]Student, error) {
	return r.queryStudents(ctx, r.db, studentSelect+` WHERE s.teacher_id = $1 ORDER BY s.created_at DESC, s.name`, teacherID)
}

// StudentsInClass returns the roster of one class ordered by name.
func (r *Repository) StudentsInClass(ctx context.Context, classID string) ([]Student, error) {
	return r.queryStudents(ctx, r.db, studentSelect+` WHERE s.class_id = $1 ORDER BY s.name, s.id`, classID)
}

// StudentByEmail returns the roster entry a student account is linked to, or nil.
// Emails compare case-insensitively. The oldest entry wins when the email is
// on more than one roster.
func (r *Repository) StudentByEmail(ctx context.Context, email string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, studentSelect+` WHERE LOWER(s.email) = LOWER($1) ORDER BY s.created_at LIMIT 1`, email)
	return studentOrNil(scanStudent(row))
}

// StudentInClassByEmail returns the entry for email on the roster of classID,
// or nil.
func (r *Repository) StudentInClassByEmail(ctx context.Context, email, classID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, studentSelect+`
		WHERE LOWER(s.email) = LOWER($1) AND s.class_id = $2
		ORDER BY s.created_at LIMIT 1
	`, email, classID)
	return studentOrNil(scanStudent(row))
}

func studentOrNil(s Student, err error) (*Student, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StudentMatches reports whether a roster entry has exactly this name, email
// and student id.
func (r *Repository) StudentMatches(ctx context.Context, name, email, studentID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students WHERE name = $1 AND email = $2 AND student_id = $3
	`, name, email, studentID).Scan(&n)
	return n > 0, err
}

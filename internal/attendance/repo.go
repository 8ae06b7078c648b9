package attendance

import (
	"context"
	"database/sql"

	"classroll/internal/store"
)

// Repository persists attendance rows.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, class_id, teacher_id, date, status, notes, created_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.StudentID, &r.ClassID, &r.TeacherID, &r.Date, &r.Status, &r.Notes, &r.CreatedAt)
	return r, err
}

func (r *Repository) records(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ForClassDate returns the rows of one class on one date.
func (r *Repository) ForClassDate(ctx context.Context, classID, date string) ([]Record, error) {
	return r.records(ctx, `SELECT `+recordColumns+` FROM attendance WHERE class_id = $1 AND date = $2`, classID, date)
}

// ForClassRange returns the rows of a class between two dates inclusive,
// oldest first.
func (r *Repository) ForClassRange(ctx context.Context, classID, from, to string) ([]Record, error) {
	return r.records(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE class_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, student_id
	`, classID, from, to)
}

// Replace swaps all rows of (class, date) for recs in one transaction.
func (r *Repository) Replace(ctx context.Context, classID, date string, recs []Record) error {
	return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE class_id = $1 AND date = $2`, classID, date); err != nil {
			return err
		}
		for _, rec := range recs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO attendance (`+recordColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, rec.ID, rec.StudentID, rec.ClassID, rec.TeacherID, rec.Date, rec.Status,
				store.NullString(rec.Notes), rec.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkPresent inserts a present row, or upgrades an existing absent one.
// Rows a teacher set to late or excused are left alone. It reports whether
// a row was written.
func (r *Repository) MarkPresent(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, class_id, date)
		DO UPDATE SET status = 'present' WHERE attendance.status = 'absent'
	`, rec.ID, rec.StudentID, rec.ClassID, rec.TeacherID, rec.Date, StatusPresent,
		store.NullString(rec.Notes), rec.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ForStudent returns a roster entry's most recent rows with class details.
func (r *Repository) ForStudent(ctx context.Context, studentID string, limit int) ([]HistoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.class_id, a.teacher_id, a.date, a.status, a.notes, a.created_at,
			c.name, c.subject
		FROM attendance a JOIN classes c ON c.id = a.class_id
		WHERE a.student_id = $1
		ORDER BY a.date DESC, a.created_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []HistoryItem
	for rows.Next() {
		var h HistoryItem
		if err := rows.Scan(&h.ID, &h.StudentID, &h.ClassID, &h.TeacherID, &h.Date, &h.Status, &h.Notes,
			&h.CreatedAt, &h.ClassName, &h.ClassSubject); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

package qrsession

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classroll/internal/store"
)

// Repository persists QR sessions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, class_id, teacher_id, session_code, expires_at, is_active, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.ClassID, &s.TeacherID, &s.Code, &s.ExpiresAt, &s.Active, &s.CreatedAt)
	return s, err
}

func (r *Repository) one(ctx context.Context, q store.Querier, query string, args ...any) (*Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) many(ctx context.Context, q store.Querier, query string, args ...any) ([]Session, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Replace deactivates every active session of the class and inserts s, in
// one transaction. It returns the sessions it deactivated.
func (r *Repository) Replace(ctx context.Context, s Session) ([]Session, error) {
	var replaced []Session
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		replaced, err = r.many(ctx, tx, `SELECT `+sessionColumns+` FROM qr_sessions WHERE class_id = $1 AND is_active = $2`, s.ClassID, true)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE qr_sessions SET is_active = $1 WHERE class_id = $2 AND is_active = $3`, false, s.ClassID, true); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO qr_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.ID, s.ClassID, s.TeacherID, s.Code, s.ExpiresAt.UTC(), s.Active, s.CreatedAt.UTC())
		return err
	})
	return replaced, err
}

// Deactivate marks a session inactive. It reports whether the session was
// active before the call.
func (r *Repository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET is_active = $1 WHERE id = $2 AND is_active = $3`, false, id, true)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ByID returns a session by id, or nil.
func (r *Repository) ByID(ctx context.Context, id string) (*Session, error) {
	return r.one(ctx, r.db, `SELECT `+sessionColumns+` FROM qr_sessions WHERE id = $1`, id)
}

// ByIDAndCode returns the session matching a scanned id and code, or nil.
func (r *Repository) ByIDAndCode(ctx context.Context, id, code string) (*Session, error) {
	return r.one(ctx, r.db, `SELECT `+sessionColumns+` FROM qr_sessions WHERE id = $1 AND session_code = $2`, id, code)
}

// ActiveForClass returns the newest active session of a class, or nil.
func (r *Repository) ActiveForClass(ctx context.Context, classID string) (*Session, error) {
	return r.one(ctx, r.db, `
		SELECT `+sessionColumns+` FROM qr_sessions
		WHERE class_id = $1 AND is_active = $2
		ORDER BY created_at DESC LIMIT 1
	`, classID, true)
}

// AllActive returns every session still flagged active.
func (r *Repository) AllActive(ctx context.Context) ([]Session, error) {
	return r.many(ctx, r.db, `SELECT `+sessionColumns+` FROM qr_sessions WHERE is_active = $1`, true)
}

// CountActive returns how many sessions of a class are flagged active.
func (r *Repository) CountActive(ctx context.Context, classID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_sessions WHERE class_id = $1 AND is_active = $2`, classID, true).Scan(&n)
	return n, err
}

// deadline bounds background writes made outside a request.
func deadline() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

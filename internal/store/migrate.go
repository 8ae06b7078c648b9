package store

import (
	"context"
	"fmt"
	"strings"
)

// schema is written for Postgres; SQLite gets DATETIME instead of TIMESTAMPTZ
// so go-sqlite3 scans those columns back into time.Time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		full_name  TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('teacher', 'student')),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id            TEXT PRIMARY KEY,
		teacher_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		subject       TEXT,
		room          TEXT,
		schedule_days TEXT,
		schedule_time TEXT,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_teacher ON classes(teacher_id)`,
	`CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		class_id   TEXT REFERENCES classes(id) ON DELETE SET NULL,
		name       TEXT NOT NULL,
		email      TEXT,
		student_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id)`,
	`CREATE INDEX IF NOT EXISTS idx_students_email ON students(email)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id         TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		class_id   TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		teacher_id TEXT NOT NULL,
		date       TEXT NOT NULL,
		status     TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late', 'excused')),
		notes      TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (student_id, class_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_class_date ON attendance(class_id, date)`,
	`CREATE TABLE IF NOT EXISTS qr_sessions (
		id           TEXT PRIMARY KEY,
		class_id     TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		teacher_id   TEXT NOT NULL,
		session_code TEXT NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_qr_sessions_class_active ON qr_sessions(class_id, is_active)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, d *DB) error {
	for _, stmt := range schema {
		if d.Dialect == SQLite {
			stmt = strings.ReplaceAll(stmt, "TIMESTAMPTZ", "DATETIME")
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classroll/internal/store"
)

// User is a sign-in identity.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile carries the display name and role of a user.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists users, profiles and refresh tokens.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser writes the user and its profile in one transaction.
func (r *Repository) CreateUser(ctx context.Context, u User, p Profile) error {
	return store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, created_at)
			VALUES ($1, $2, $3, $4)
		`, u.ID, u.Email, u.PasswordHash, u.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, full_name, role, created_at)
			VALUES ($1, $2, $3, $4)
		`, u.ID, p.FullName, p.Role, p.CreatedAt)
		return err
	})
}

// EmailTaken reports whether an account already uses email.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&n)
	return n > 0, err
}

// UserByEmail returns the user with its profile, or nil when none exists.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, *Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.created_at, p.full_name, p.role, p.created_at
		FROM users u JOIN profiles p ON p.user_id = u.id
		WHERE u.email = $1
	`, email)
	var u User
	var p Profile
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &p.FullName, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	p.UserID, p.Email = u.ID, u.Email
	return &u, &p, nil
}

// ProfileByUserID returns a profile, or nil when none exists.
func (r *Repository) ProfileByUserID(ctx context.Context, userID string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.user_id, u.email, p.full_name, p.role, p.created_at
		FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
	`, userID)
	var p Profile
	if err := row.Scan(&p.UserID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4)
	`, token, userID, expiresAt.UTC(), false)
	return err
}

// RevokeRefreshToken marks a live token revoked and reports whether it was live.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = $1 WHERE token = $2 AND revoked = $3`, true, token, false)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

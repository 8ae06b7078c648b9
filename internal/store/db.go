package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL engine behind a DB.
type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite3"
)

// DB wraps sql.DB for Postgres (pgx) or SQLite.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// DialectFor picks the driver from a connection string: postgres URLs use pgx,
// "sqlite:" / "file:" prefixes and *.db paths use SQLite.
func DialectFor(connString string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(connString, "postgres://"), strings.HasPrefix(connString, "postgresql://"):
		return Postgres, connString, nil
	case strings.HasPrefix(connString, "sqlite:"):
		return SQLite, strings.TrimPrefix(connString, "sqlite:"), nil
	case strings.HasPrefix(connString, "file:"), strings.HasSuffix(connString, ".db"):
		return SQLite, connString, nil
	}
	return "", "", errors.New("store: unsupported DATABASE_URL")
}

// NewDB opens a connection with sane defaults and pings it.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	dialect, dsn, err := DialectFor(connString)
	if err != nil {
		return nil, err
	}
	return Open(ctx, dialect, dsn)
}

// Open opens dsn with the given dialect. SQLite connections always enforce
// foreign keys, so ON DELETE actions run.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dialect == SQLite {
		dsn = withForeignKeys(dsn)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps in-memory databases alive and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &DB{Client: db, Dialect: dialect}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}

// Healthy reports whether the database answers a ping.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn inside a transaction, rolling back when fn returns an error.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// NullString maps "" to NULL.
func NullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

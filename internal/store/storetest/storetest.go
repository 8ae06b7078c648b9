// Package storetest opens throwaway SQLite databases for package tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"classroll/internal/store"
)

// NewDB returns a migrated in-memory database closed at test cleanup.
func NewDB(t *testing.T) *store.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(context.Background(), store.SQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SeedUser inserts a bare user row and returns its id, for tests that need
// foreign keys to resolve.
func SeedUser(t *testing.T, db *store.DB, email string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Client.ExecContext(context.Background(),
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, "x", time.Now().UTC())
	require.NoError(t, err)
	return id
}

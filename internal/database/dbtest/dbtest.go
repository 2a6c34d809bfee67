// Package dbtest opens throwaway sqlite databases with every migration
// applied, for repository and handler tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/iliyamo/techtrack/internal/database"
)

// Open returns a migrated sqlite database that lives in t.TempDir and
// is closed when the test finishes.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "techtrack_test.db")

	db, err := database.Open(database.Options{Driver: database.DriverSQLite, Path: dbPath})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	database.SetLogger(nil)
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

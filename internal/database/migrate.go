package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

func prepare(driver string) (string, error) {
	dialect, dir := "mysql", "migrations/mysql"
	if driver == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return "", err
	}
	goose.SetBaseFS(migrationsFS)
	return dir, nil
}

// Migrate applies every pending migration for the given driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := prepare(driver)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := prepare(driver)
	if err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of every migration through
// the logger set with SetLogger.
func MigrationStatus(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := prepare(driver)
	if err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}

// Migrations lists the embedded migration files for the driver.
func Migrations(driver string) ([]string, error) {
	dir := "migrations/mysql"
	if driver == DriverSQLite {
		dir = "migrations/sqlite"
	}
	return fs.Glob(migrationsFS, dir+"/*.sql")
}

package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/techtrack/internal/database"
)

func TestMigrationsAreEmbeddedForBothDrivers(t *testing.T) {
	for _, driver := range []string{database.DriverMySQL, database.DriverSQLite} {
		files, err := database.Migrations(driver)
		require.NoError(t, err)
		assert.NotEmpty(t, files, driver)
	}
}

func TestMigrateUpAndDownOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "migrate.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	tables := []string{
		"technicians", "locations", "activities", "cable_type", "racks", "technician_tasks",
		"rack_states", "rack_results", "auth_tokens", "projects", "statuses",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	// running again is a no-op
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	require.NoError(t, database.MigrateDown(ctx, db, database.DriverSQLite))
	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='technician_tasks'").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrateLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	database.SetLogger(zap.New(core))
	t.Cleanup(func() { database.SetLogger(nil) })

	ctx := context.Background()
	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "log.db"),
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	applied := logs.Filter(func(e observer.LoggedEntry) bool {
		return e.LoggerName == "migrate"
	}).FilterMessageSnippet("00001_init.sql").All()
	require.NotEmpty(t, applied)
	assert.NotContains(t, applied[0].Message, "\n")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(database.Options{Driver: "postgres"})
	assert.Error(t, err)
}

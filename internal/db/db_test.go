package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp())
	return database
}

func TestNewDB_AppliesPragmas(t *testing.T) {
	database, err := NewDB(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	defer database.Close()

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestMigrations_UpDown(t *testing.T) {
	database, err := NewDB(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.MigrateUp())

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	for _, table := range []string{"runs", "labeled_samples", "accel_samples"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing after migrate up", table)
	}

	// Up is idempotent once at the latest version.
	require.NoError(t, database.MigrateUp())

	require.NoError(t, database.MigrateDown())
	var n int
	require.NoError(t, database.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'labeled_samples'",
	).Scan(&n))
	require.Equal(t, 0, n)
}

func TestIsSQLiteBusy(t *testing.T) {
	require.True(t, isSQLiteBusy(errors.New("SQLITE_BUSY: database is locked")))
	require.True(t, isSQLiteBusy(errors.New("database is locked (5)")))
	require.False(t, isSQLiteBusy(errors.New("UNIQUE constraint failed")))
	require.False(t, isSQLiteBusy(nil))
}

func TestRetryOnBusy_EventualSuccess(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryOnBusy_NonBusyFailsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("syntax error")
	err := retryOnBusy(func() error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}

func TestRetryOnBusy_Exhaustion(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	require.Error(t, err)
	require.Equal(t, busyRetries, calls)
}

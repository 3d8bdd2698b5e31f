// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/db"
)

// Open returns a migrated SQLite database living in the test's temp dir.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "board_test.db")
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	database, err := db.Init("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(database); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})

	if err := db.RunMigrations(database.DB, "sqlite"); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}

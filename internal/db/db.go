package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// sqliteParams are forced onto every SQLite DSN. Image foreign keys must be
// enforced, and timestamps must round-trip in a format SQLite compares
// correctly as text.
var sqliteParams = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_time_format=sqlite",
}

func Init(driver, connection string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		connection = sqliteDSN(connection)

		// Create data directory if needed
		if !strings.Contains(connection, ":memory:") {
			dir := filepath.Dir(strings.SplitN(connection, "?", 2)[0])
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected", "driver", driver)
	return db, nil
}

// sqliteDSN appends any of sqliteParams the connection string lacks.
func sqliteDSN(connection string) string {
	for _, param := range sqliteParams {
		name, _, _ := strings.Cut(param, "=")
		if name == "_pragma" {
			name = param[:strings.Index(param, "(")]
		}
		if strings.Contains(connection, name) {
			continue
		}
		sep := "?"
		if strings.Contains(connection, "?") {
			sep = "&"
		}
		connection += sep + param
	}
	return connection
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}

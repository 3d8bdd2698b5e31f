package db

import "embed"

// migrationsFS holds one goose migration directory per SQL dialect.
//
//go:embed migrations
var migrationsFS embed.FS

package infra

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Migrations returns the embedded schema migrations.
func Migrations() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFS, Root: "migrations"}
}

// Migrate applies (up) or reverts (down) schema migrations against the
// database at url. max bounds how many migrations run; 0 means all.
func Migrate(url string, up bool, max int) (int, error) {
	if url == "" {
		return 0, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	direction := migrate.Up
	if !up {
		direction = migrate.Down
	}
	ms := migrate.MigrationSet{TableName: migrationTable}
	n, err := ms.ExecMax(db, "postgres", Migrations(), direction, max)
	if err != nil {
		return n, fmt.Errorf("migrate: %w", err)
	}
	return n, nil
}

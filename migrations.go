package pglisten

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// MigrationFiles contains the journal schema for every supported driver, under
// migrations/<driver>/*.sql. Users can feed these files to their preferred
// migration tool (goose, golang-migrate, atlas, etc.) or call ApplyMigrations.
//
// Example with goose:
//
//	goose.SetBaseFS(pglisten.MigrationFiles)
//	if err := goose.Up(db, "migrations/postgres"); err != nil {
//	    log.Fatal(err)
//	}
//
//go:embed migrations
var MigrationFiles embed.FS

// MigrationDrivers lists the drivers with an embedded schema.
var MigrationDrivers = []string{"mysql", "postgres", "sqlite3"}

// ApplyMigrations runs the embedded schema for driver ("mysql", "postgres" or
// "sqlite3") against db, file by file in name order. The statements are
// idempotent, so it is safe to call on every start.
func ApplyMigrations(ctx context.Context, db *sql.DB, driver string) error {
	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return NewErrorWithCause(ErrCodeConfiguration, fmt.Sprintf("no migrations for driver %q", driver), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(MigrationFiles, path.Join(dir, name))
		if err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to read migration "+name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, "failed to apply migration "+name, err)
			}
		}
	}
	return nil
}

// splitStatements splits a migration file on semicolons ending a line.
// Drivers such as go-sql-driver/mysql reject multi-statement Exec by default.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";\n") {
		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

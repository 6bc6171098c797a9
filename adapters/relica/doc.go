// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// This package provides the pglisten.JournalRepository implementation used to
// persist received notifications on MySQL, PostgreSQL or SQLite.
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/pglisten"
//	    "github.com/coregx/pglisten/adapters/relica"
//	    _ "github.com/lib/pq"
//	)
//
//	db, err := sql.Open("postgres", "host=localhost dbname=app sslmode=disable")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := pglisten.ApplyMigrations(ctx, db, "postgres"); err != nil {
//	    log.Fatal(err)
//	}
//
//	repos := relica.NewRepositories(db, "postgres")
//	journal, err := pglisten.NewJournal(
//	    pglisten.WithJournalRepository(repos.Journal),
//	    pglisten.WithRetention(24*time.Hour),
//	)
package relica

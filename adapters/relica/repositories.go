package relica

import (
	"database/sql"

	"github.com/coregx/pglisten"
)

// DefaultTablePrefix is the table prefix used by the embedded migrations.
const DefaultTablePrefix = "pglisten_"

// Repositories holds all repository implementations.
type Repositories struct {
	Journal pglisten.JournalRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "pglisten_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, DefaultTablePrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Journal: NewJournalRepositoryWithPrefix(db, driverName, prefix),
	}
}

package pglisten

import (
	"context"
	"time"

	"github.com/coregx/pglisten/model"
)

// JournalRepository defines the persistence interface for journal entries.
//
// Implementations must be safe for concurrent use.
type JournalRepository interface {
	// Load retrieves a journal entry by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.JournalEntry, error)

	// Save inserts a new entry (if ID=0) or updates an existing one.
	// Returns the saved entry with populated ID.
	Save(ctx context.Context, e *model.JournalEntry) (*model.JournalEntry, error)

	// Delete permanently removes an entry.
	Delete(ctx context.Context, e *model.JournalEntry) error

	// FindByChannel retrieves the newest entries of a channel, newest first.
	// Returns ErrNoData if none found.
	FindByChannel(ctx context.Context, channel string, limit int) ([]model.JournalEntry, error)

	// FindRecent retrieves the newest entries across all channels, newest first.
	// Returns ErrNoData if none found.
	FindRecent(ctx context.Context, limit int) ([]model.JournalEntry, error)

	// FindExpired retrieves entries received before the cutoff, oldest first.
	// Returns ErrNoData if none found.
	FindExpired(ctx context.Context, before time.Time, limit int) ([]model.JournalEntry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)
}

package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relica"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

// JournalRepository implements pglisten.JournalRepository using Relica.
type JournalRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewJournalRepository creates a new JournalRepository with default table prefix.
func NewJournalRepository(sqlDB *sql.DB, driverName string) *JournalRepository {
	return NewJournalRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewJournalRepositoryWithPrefix creates a new JournalRepository with custom table prefix.
func NewJournalRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *JournalRepository {
	return &JournalRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *JournalRepository) tableName() string {
	return r.tablePrefix + "journal"
}

// Load retrieves a journal entry by ID.
func (r *JournalRepository) Load(ctx context.Context, id int64) (model.JournalEntry, error) {
	var entry model.JournalEntry

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id = ?", id).
		WithContext(ctx).
		One(&entry)

	if errors.Is(err, sql.ErrNoRows) {
		return entry, pglisten.ErrNoData
	}
	if err != nil {
		return entry, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to load journal entry", err)
	}

	return entry, nil
}

// Save creates or updates a journal entry.
func (r *JournalRepository) Save(ctx context.Context, e *model.JournalEntry) (*model.JournalEntry, error) {
	if e.ID == 0 {
		// Insert using Model() API - auto-populates e.ID
		err := r.db.WithContext(ctx).Model(e).Table(r.tableName()).Insert()
		if err != nil {
			return e, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to insert journal entry", err)
		}
		return e, nil
	}

	err := r.db.WithContext(ctx).Model(e).Table(r.tableName()).Update()
	if err != nil {
		return e, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to update journal entry", err)
	}

	return e, nil
}

// Delete removes a journal entry.
func (r *JournalRepository) Delete(ctx context.Context, e *model.JournalEntry) error {
	err := r.db.WithContext(ctx).Model(e).Table(r.tableName()).Delete()
	if err != nil {
		return pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to delete journal entry", err)
	}

	return nil
}

// FindByChannel retrieves the newest entries of a channel.
func (r *JournalRepository) FindByChannel(ctx context.Context, channel string, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("channel = ?", channel).
		OrderBy("received_at DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&entries)

	if err != nil {
		return nil, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to find journal entries by channel", err)
	}

	if len(entries) == 0 {
		return nil, pglisten.ErrNoData
	}

	return entries, nil
}

// FindRecent retrieves the newest entries across all channels.
func (r *JournalRepository) FindRecent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("received_at DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&entries)

	if err != nil {
		return nil, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to find recent journal entries", err)
	}

	if len(entries) == 0 {
		return nil, pglisten.ErrNoData
	}

	return entries, nil
}

// FindExpired retrieves entries received before the cutoff, oldest first.
func (r *JournalRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("received_at < ?", before).
		OrderBy("received_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&entries)

	if err != nil {
		return nil, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to find expired journal entries", err)
	}

	if len(entries) == 0 {
		return nil, pglisten.ErrNoData
	}

	return entries, nil
}

// Count returns the number of stored entries.
func (r *JournalRepository) Count(ctx context.Context) (int64, error) {
	var row struct {
		N int64 `db:"n"`
	}

	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").
		From(r.tableName()).
		WithContext(ctx).
		One(&row)

	if err != nil {
		return 0, pglisten.NewErrorWithCause(pglisten.ErrCodeDatabase, "failed to count journal entries", err)
	}

	return row.N, nil
}

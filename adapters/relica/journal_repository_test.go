package relica

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

func openJournalDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, pglisten.ApplyMigrations(context.Background(), db, "sqlite3"))
	return db
}

func saveEntry(t *testing.T, repo *JournalRepository, channel, payload string, at time.Time) *model.JournalEntry {
	t.Helper()

	n := model.NewNotification(4242, channel, payload, model.PayloadOf(payload))
	n.ReceivedAt = at
	entry := model.NewJournalEntry(n)
	saved, err := repo.Save(context.Background(), &entry)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)
	return saved
}

func TestJournalRepository_SaveAndLoad(t *testing.T) {
	repo := NewJournalRepository(openJournalDB(t), "sqlite3")
	ctx := context.Background()

	saved := saveEntry(t, repo, "orders", `{"id":1}`, time.Now().UTC())

	loaded, err := repo.Load(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", loaded.Channel)
	assert.Equal(t, 4242, loaded.ProcessID)
	assert.Equal(t, `{"id":1}`, loaded.Payload)
	assert.True(t, loaded.HasPayload)

	_, err = repo.Load(ctx, saved.ID+100)
	assert.True(t, pglisten.IsNoData(err))
}

func TestJournalRepository_FindByChannel(t *testing.T) {
	repo := NewJournalRepository(openJournalDB(t), "sqlite3")
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	saveEntry(t, repo, "orders", "first", base)
	saveEntry(t, repo, "users", "other", base.Add(time.Second))
	saveEntry(t, repo, "orders", "second", base.Add(2*time.Second))

	entries, err := repo.FindByChannel(ctx, "orders", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Payload, "newest first")
	assert.Equal(t, "first", entries[1].Payload)

	limited, err := repo.FindByChannel(ctx, "orders", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.FindByChannel(ctx, "missing", 10)
	assert.True(t, pglisten.IsNoData(err))
}

func TestJournalRepository_FindRecentAndCount(t *testing.T) {
	repo := NewJournalRepository(openJournalDB(t), "sqlite3")
	ctx := context.Background()

	_, err := repo.FindRecent(ctx, 10)
	assert.True(t, pglisten.IsNoData(err))

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		saveEntry(t, repo, "c", "x", base.Add(time.Duration(i)*time.Second))
	}

	entries, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestJournalRepository_FindExpiredAndDelete(t *testing.T) {
	repo := NewJournalRepository(openJournalDB(t), "sqlite3")
	ctx := context.Background()
	now := time.Now().UTC()

	oldest := saveEntry(t, repo, "c", "oldest", now.Add(-3*time.Hour))
	saveEntry(t, repo, "c", "old", now.Add(-2*time.Hour))
	saveEntry(t, repo, "c", "fresh", now)

	expired, err := repo.FindExpired(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, oldest.ID, expired[0].ID, "oldest first")

	for i := range expired {
		require.NoError(t, repo.Delete(ctx, &expired[i]))
	}

	_, err = repo.FindExpired(ctx, now.Add(-time.Hour), 10)
	assert.True(t, pglisten.IsNoData(err))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestJournal_WithRelicaRepository(t *testing.T) {
	repos := NewRepositories(openJournalDB(t), "sqlite3")
	journal, err := pglisten.NewJournal(pglisten.WithJournalRepository(repos.Journal))
	require.NoError(t, err)
	ctx := context.Background()

	n := model.NewNotification(7, "orders", "", model.NoPayload())
	n.ReceivedAt = time.Now().UTC()
	_, err = journal.Record(ctx, n)
	require.NoError(t, err)

	entries, err := journal.Recent(ctx, "orders", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].HasPayload)
	assert.Empty(t, entries[0].Payload)
}

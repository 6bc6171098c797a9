package pglisten

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coregx/pglisten/model"
)

const (
	defaultJournalBatchSize = 100
	defaultJournalBuffer    = 1024
)

// Journal records received notifications through a JournalRepository and prunes
// them after a retention window.
//
// Attach subscribes the journal to a session's event bus. Notifications are
// queued in memory and written by Run, so a slow database never delays delivery
// to other listeners. When the queue is full, notifications are dropped and
// counted.
//
// The journal is an audit trail of what the session received, not a delivery
// guarantee: notifications published while disconnected are never seen.
//
// Thread safety: Safe for concurrent use.
type Journal struct {
	repo      JournalRepository
	logger    Logger
	retention time.Duration
	batchSize int

	queue   chan model.Notification
	dropped atomic.Int64
}

// JournalOption is a function that configures a Journal.
type JournalOption func(*Journal) error

// WithJournalRepository sets the required repository.
func WithJournalRepository(repo JournalRepository) JournalOption {
	return func(j *Journal) error {
		if repo == nil {
			return fmt.Errorf("journal repository cannot be nil")
		}
		j.repo = repo
		return nil
	}
}

// WithJournalLogger sets the logger instance.
func WithJournalLogger(logger Logger) JournalOption {
	return func(j *Journal) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		j.logger = logger
		return nil
	}
}

// WithRetention sets how long entries are kept. 0 keeps them forever.
func WithRetention(retention time.Duration) JournalOption {
	return func(j *Journal) error {
		if retention < 0 {
			return fmt.Errorf("retention must be >= 0, got %v", retention)
		}
		j.retention = retention
		return nil
	}
}

// WithJournalBatchSize sets how many entries are written or pruned per batch.
// Must be > 0. Default is 100.
func WithJournalBatchSize(size int) JournalOption {
	return func(j *Journal) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be > 0, got %d", size)
		}
		j.batchSize = size
		return nil
	}
}

// WithJournalBuffer sets the capacity of the in-memory write queue.
// Must be > 0. Default is 1024.
func WithJournalBuffer(size int) JournalOption {
	return func(j *Journal) error {
		if size <= 0 {
			return fmt.Errorf("buffer size must be > 0, got %d", size)
		}
		j.queue = make(chan model.Notification, size)
		return nil
	}
}

// NewJournal creates a new Journal.
//
// Required options:
//   - WithJournalRepository
//
// Example:
//
//	journal, err := pglisten.NewJournal(
//	    pglisten.WithJournalRepository(relica.NewJournalRepository(db, "postgres")),
//	    pglisten.WithRetention(24*time.Hour),
//	)
//	journal.Attach(session.Events())
//	go journal.Run(ctx, time.Second)
func NewJournal(opts ...JournalOption) (*Journal, error) {
	j := &Journal{
		logger:    &NoopLogger{},
		batchSize: defaultJournalBatchSize,
		queue:     make(chan model.Notification, defaultJournalBuffer),
	}

	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if j.repo == nil {
		return nil, NewError(ErrCodeConfiguration, "JournalRepository is required (use WithJournalRepository)")
	}

	return j, nil
}

// Attach queues every notification published on bus. Cancel the handle to stop.
func (j *Journal) Attach(bus *EventBus) *Handle {
	return bus.OnNotification(func(n model.Notification) { j.Enqueue(n) })
}

// Enqueue queues n for writing without blocking. It reports false if the queue
// is full and n was dropped.
func (j *Journal) Enqueue(n model.Notification) bool {
	select {
	case j.queue <- n:
		return true
	default:
		j.dropped.Add(1)
		return false
	}
}

// Dropped returns how many notifications were dropped because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Record writes n immediately.
func (j *Journal) Record(ctx context.Context, n model.Notification) (*model.JournalEntry, error) {
	entry := model.NewJournalEntry(n)
	saved, err := j.repo.Save(ctx, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to save journal entry: %w", err)
	}
	return saved, nil
}

// Flush writes up to one batch of queued notifications.
// Returns the number of written entries.
func (j *Journal) Flush(ctx context.Context) int {
	written := 0
	for written < j.batchSize {
		select {
		case n := <-j.queue:
			if _, err := j.Record(ctx, n); err != nil {
				j.logger.Errorf("Failed to record notification on channel %s: %v", n.Channel, err)
				continue
			}
			written++
		default:
			return written
		}
	}
	return written
}

// Recent returns the newest entries, optionally restricted to one channel.
// Returns an empty slice when there are none.
func (j *Journal) Recent(ctx context.Context, channel string, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = j.batchSize
	}

	var (
		entries []model.JournalEntry
		err     error
	)
	if channel == "" {
		entries, err = j.repo.FindRecent(ctx, limit)
	} else {
		entries, err = j.repo.FindByChannel(ctx, channel, limit)
	}
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return []model.JournalEntry{}, nil
		}
		return nil, fmt.Errorf("failed to find journal entries: %w", err)
	}
	return entries, nil
}

// Prune deletes one batch of entries older than the retention window.
// Returns the number of deleted entries and any critical error.
func (j *Journal) Prune(ctx context.Context) (int, error) {
	if j.retention <= 0 {
		return 0, nil
	}

	entries, err := j.repo.FindExpired(ctx, time.Now().Add(-j.retention), j.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to find expired entries: %w", err)
	}

	deleted := 0
	for i := range entries {
		if err := j.repo.Delete(ctx, &entries[i]); err != nil {
			j.logger.Errorf("Failed to delete journal entry %d: %v", entries[i].ID, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		j.logger.Infof("Pruned %d journal entries", deleted)
	}
	return deleted, nil
}

// Run writes queued notifications and prunes expired entries every interval
// until ctx is canceled, then flushes what is left.
//
// This method blocks and should typically be run in a goroutine.
func (j *Journal) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("Journal started")

	for {
		select {
		case <-ctx.Done():
			j.drain()
			j.logger.Info("Journal stopped")
			return
		case <-ticker.C:
			j.processBatch(ctx)
		}
	}
}

func (j *Journal) processBatch(ctx context.Context) {
	written := 0
	for {
		n := j.Flush(ctx)
		written += n
		if n < j.batchSize {
			break
		}
	}

	pruned, err := j.Prune(ctx)
	if err != nil {
		j.logger.Errorf("Error pruning journal: %v", err)
	}

	if written > 0 || pruned > 0 {
		j.logger.Debugf("Journal batch processed: written=%d, pruned=%d", written, pruned)
	}
}

// drain writes whatever is queued with a short deadline after shutdown.
func (j *Journal) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := j.batchSize; n == j.batchSize; {
		n = j.Flush(ctx)
	}
}

package model

import "time"

// tablePrefix is the default prefix of every pglisten table.
const tablePrefix = "pglisten_"

// JournalEntry is a persisted record of a received notification.
//
// The journal is an audit trail of what the session actually received; it does
// not make delivery reliable, since notifications published while the session
// was disconnected never reach it.
type JournalEntry struct {
	ID         int64     `json:"id" db:"id"`
	Channel    string    `json:"channel" db:"channel"`
	ProcessID  int       `json:"processId" db:"process_id"`
	Payload    string    `json:"payload" db:"payload"`        // Raw payload text
	HasPayload bool      `json:"hasPayload" db:"has_payload"` // False when NOTIFY carried no payload
	ReceivedAt time.Time `json:"receivedAt" db:"received_at"` // Session-local receipt time
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`   // Insert time
}

// TableName returns the database table name for JournalEntry.
func (e JournalEntry) TableName() string {
	return tablePrefix + "journal"
}

// NewJournalEntry creates a journal record for a received notification.
func NewJournalEntry(n Notification) JournalEntry {
	received := n.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	return JournalEntry{
		ID:         0,
		Channel:    n.Channel,
		ProcessID:  n.ProcessID,
		Payload:    n.RawPayload,
		HasPayload: n.HasPayload(),
		ReceivedAt: received,
		CreatedAt:  time.Now(),
	}
}

// GetAge returns how long ago the notification was received.
func (e JournalEntry) GetAge() time.Duration {
	return time.Since(e.ReceivedAt)
}

// IsExpired reports whether the entry is older than the retention window.
// A non-positive retention never expires entries.
func (e JournalEntry) IsExpired(retention time.Duration) bool {
	if retention <= 0 {
		return false
	}
	return e.GetAge() > retention
}

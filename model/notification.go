package model

import "time"

// Notification is a decoded message delivered on a LISTENed channel.
// It is produced once per server-delivered message and is not persisted by the session.
type Notification struct {
	ProcessID  int       `json:"processId"`  // Backend PID of the notifying session
	Channel    string    `json:"channel"`    // Channel the message was published on
	RawPayload string    `json:"-"`          // Payload text as received (empty when absent)
	Payload    Payload   `json:"payload"`    // Decoded payload
	ReceivedAt time.Time `json:"receivedAt"` // Local receipt time
}

// NewNotification builds a Notification stamped with the current time.
func NewNotification(processID int, channel, raw string, payload Payload) Notification {
	return Notification{
		ProcessID:  processID,
		Channel:    channel,
		RawPayload: raw,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

// HasPayload reports whether the server delivered a non-empty payload.
func (n Notification) HasPayload() bool {
	return n.RawPayload != ""
}

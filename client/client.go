// Package client defines the low-level wire client the pglisten session drives,
// and provides the lib/pq implementation.
//
// A Client is single-use: it performs one handshake, carries one server
// connection and is discarded once that connection ends. The session replaces
// it wholesale on reconnect.
package client

import (
	"context"
	"errors"
)

// Notification is a raw notification as delivered by the server.
type Notification struct {
	ProcessID int    // Backend PID of the notifying session
	Channel   string // Channel name
	Payload   string // Payload text; empty when NOTIFY carried none
}

// Client is a single PostgreSQL connection able to run simple statements and
// receive asynchronous notifications.
type Client interface {
	// Connect performs the handshake. It may be called once.
	Connect(ctx context.Context) error

	// Exec runs a statement and discards any rows.
	Exec(ctx context.Context, query string) error

	// Notifications delivers notifications in arrival order.
	// The channel is closed when the connection ends.
	Notifications() <-chan Notification

	// Done is closed when the connection has ended, whether by error or by Close.
	Done() <-chan struct{}

	// Err returns the reason the connection ended, or nil while it is alive.
	Err() error

	// Close terminates the connection. Safe to call more than once.
	Close() error
}

// Factory builds an unconnected Client for the given target.
type Factory func(cfg Config) Client

// Errors reported by clients.
var (
	ErrNotConnected    = errors.New("client: not connected")
	ErrConnectionEnded = errors.New("client: connection ended")
	ErrClosed          = errors.New("client: closed")
	ErrAlreadyStarted  = errors.New("client: connect already called")
)

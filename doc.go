// Package pglisten provides a resilient publish/subscribe session on top of
// PostgreSQL LISTEN/NOTIFY.
//
// A Session registers interest in named channels, delivers asynchronously
// published notifications to listeners and survives connection loss: when the
// connection ends, fails its health probe or reports an error, the session
// reconnects under a bounded retry policy, issues LISTEN again for every
// recorded channel and resumes delivery. Notifications published while the
// session was disconnected are lost; PostgreSQL does not queue them.
//
// # Features
//
//   - Automatic reconnection with fixed or attempt-indexed backoff, an attempt
//     limit and a wall-clock timeout (package retry)
//   - Periodic health probe that catches silently dead connections
//   - Subscriptions replayed on every new connection
//   - Typed event bus with a global surface and a per-channel surface
//   - Explicit optional payloads: NOTIFY without a payload is distinct from a
//     payload that encodes to null
//   - Pluggable payload codec (JSON by default), Logger and AlertService
//   - Optional notification journal persisted through Relica adapters
//     (PostgreSQL, MySQL, SQLite) with embedded migrations
//
// # Quick Start
//
//	session, err := pglisten.NewSession(
//	    client.Config{Host: "localhost", User: "app", Database: "app"},
//	    pglisten.WithLogger(zlog.New(zerolog.New(os.Stderr))),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close(context.Background())
//
//	session.Events().OnChannel("orders", func(p model.Payload) {
//	    fmt.Println("order event:", p.Get())
//	})
//	session.Events().OnError(func(err error) {
//	    log.Printf("session error: %v", err)
//	})
//	if err := session.ListenTo(ctx, "orders"); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = session.Notify(ctx, "orders", model.PayloadOf(map[string]any{"id": 42}))
//
// # Reconnect Exhaustion
//
// A reconnect cycle that hits its retry limit or timeout emits an error with
// code ErrCodeReconnectExhausted and leaves the session in StateConnected
// without a live connection: Healthy reports false and no health probe runs.
// Call Connect to start again.
//
// # Standalone Service
//
// cmd/pglisten runs a session as a daemon with a REST API, a websocket stream
// of notifications and the journal. See its --help.
package pglisten

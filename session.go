package pglisten

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/model"
)

// maxChannelLength is the longest identifier, in bytes, PostgreSQL keeps without truncation.
const maxChannelLength = 63

// Session is a resilient LISTEN/NOTIFY subscriber.
//
// A Session owns one connection at a time. When that connection ends, fails its
// health probe or reports an error, the session closes it, reconnects under the
// retry policy, issues LISTEN again for every recorded channel and emits
// connected. Notifications published while disconnected are lost.
//
// If a reconnect cycle gives up, the session stays in StateConnected without a
// live connection (Healthy reports false) and emits an error. Calling Connect
// again starts from a fresh client.
//
// Thread safety: Safe for concurrent use.
type Session struct {
	cfg         client.Config
	opts        Options
	logger      Logger
	events      *EventBus
	registry    *SubscriptionRegistry
	reconnector *reconnector

	// lifetime is canceled by Close and bounds reconnect cycles.
	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	state   State
	conn    client.Client // live connection, nil when idle or degraded
	pending client.Client // built at construction, consumed by the first Connect
	wiring  []*Handle     // forwarder, health check and watch of conn

	// suspect is a live connection whose failure was reported while a cycle
	// was in flight; settle replays it.
	suspect      client.Client
	suspectCause error

	closing        atomic.Bool
	reinitializing atomic.Bool
	cycles         sync.WaitGroup
}

// NewSession creates an idle Session for the given target.
//
// Example:
//
//	session, err := pglisten.NewSession(client.Config{Host: "localhost", Database: "app"},
//	    pglisten.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	session.Events().OnChannel("orders", func(p model.Payload) { ... })
//	_ = session.ListenTo(ctx, "orders")
func NewSession(cfg client.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, "invalid connection config", err)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}
	if err := o.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, "invalid options", err)
	}

	logger := withPrefix(o.Logger, o.Name)
	if o.NativeClient {
		logger.Warnf("Native client requested; the bundled lib/pq client is used")
	}

	lifetime, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		opts:     o,
		logger:   logger,
		events:   NewEventBus(),
		registry: NewSubscriptionRegistry(),
		reconnector: &reconnector{
			cfg:     cfg,
			factory: o.ClientFactory,
			policy:  o.RetryPolicy,
			logger:  logger,
		},
		lifetime: lifetime,
		cancel:   cancel,
		state:    StateIdle,
		pending:  o.ClientFactory(cfg),
	}
	return s, nil
}

// Options returns the resolved options.
func (s *Session) Options() Options {
	return s.opts
}

// Events returns the event surface.
func (s *Session) Events() *EventBus {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy reports whether the session is connected with a live connection.
func (s *Session) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected && s.conn != nil
}

// SubscribedChannels returns the recorded channels, sorted.
func (s *Session) SubscribedChannels() []string {
	return s.registry.Snapshot()
}

// Connect performs the first handshake. It is not retried: a failure is returned
// as ErrCodeConnect and the session stays where it was.
//
// On success the session starts forwarding notifications and probing health,
// issues LISTEN for channels recorded earlier and emits connected. A failed
// LISTEN is returned as ErrCodeQuery but leaves the session connected.
//
// Connect is also how a session left without a connection by an exhausted
// reconnect cycle is brought back.
func (s *Session) Connect(ctx context.Context) error {
	if s.closing.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	switch {
	case s.state.IsTerminal():
		s.mu.Unlock()
		return ErrClosed
	case s.state == StateConnecting || s.state == StateReinitializing:
		state := s.state
		s.mu.Unlock()
		return NewError(ErrCodeState, fmt.Sprintf("cannot connect while %s", state))
	case s.state == StateConnected && s.conn != nil:
		s.mu.Unlock()
		return NewError(ErrCodeState, "already connected")
	}
	previous := s.state
	s.state = StateConnecting
	c := s.pending
	s.pending = nil
	s.mu.Unlock()

	if c == nil {
		c = s.opts.ClientFactory(s.cfg)
	}
	if previous == StateConnected {
		s.logger.Info("Re-arming session without connection")
	}

	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = previous
		}
		s.mu.Unlock()
		s.logger.Errorf("Connect failed: %v", err)
		return NewErrorWithCause(ErrCodeConnect, "initial connection failed", err)
	}

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = c.Close()
		return ErrClosed
	}
	s.install(c)
	s.mu.Unlock()

	s.logger.Infof("Connected to %s", s.cfg.String())

	err := s.resubscribe(ctx, c)
	s.events.emitConnected()
	if err != nil {
		return NewErrorWithCause(ErrCodeQuery, "failed to listen on recorded channels", err)
	}
	return nil
}

// Close ends the session. It stops forwarding and probing, terminates the
// connection and forgets every channel. An in-flight reconnect cycle is aborted
// and its result discarded. ctx bounds the wait for that cycle to unwind.
// Close is idempotent; the session cannot be used afterwards.
func (s *Session) Close(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	s.state = StateClosing
	wiring := s.wiring
	s.wiring = nil
	conn := s.conn
	s.conn = nil
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.cancel()
	cancelAll(wiring)
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debugf("Closing connection: %v", err)
		}
	}
	if pending != nil {
		_ = pending.Close()
	}
	s.registry.Clear()

	unwound := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(unwound)
	}()

	var err error
	select {
	case <-unwound:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info("Session closed")
	return err
}

// ListenTo records channel and issues LISTEN. Listening on a recorded channel is
// a no-op. If the statement fails, or there is no live connection, the error is
// returned as ErrCodeQuery and the channel stays recorded for the next connection.
func (s *Session) ListenTo(ctx context.Context, channel string) error {
	if s.closing.Load() {
		return ErrClosed
	}
	if err := validateChannel(channel); err != nil {
		return err
	}
	if !s.registry.Add(channel) {
		return nil
	}
	return s.exec(ctx, listenStatement(channel), true)
}

// Unlisten forgets channel and issues UNLISTEN. Unlistening an unrecorded channel
// is a no-op. Without a live connection only the record is removed.
func (s *Session) Unlisten(ctx context.Context, channel string) error {
	if s.closing.Load() {
		return ErrClosed
	}
	if !s.registry.Remove(channel) {
		return nil
	}
	return s.exec(ctx, unlistenStatement(channel), false)
}

// UnlistenAll forgets every channel and issues UNLISTEN *.
func (s *Session) UnlistenAll(ctx context.Context) error {
	if s.closing.Load() {
		return ErrClosed
	}
	s.registry.Clear()
	return s.exec(ctx, unlistenAllStatement, false)
}

// Notify publishes payload on channel. An absent payload sends NOTIFY without a
// payload argument; a present one is encoded with the configured serializer.
func (s *Session) Notify(ctx context.Context, channel string, payload model.Payload) error {
	if s.closing.Load() {
		return ErrClosed
	}
	if err := validateChannel(channel); err != nil {
		return err
	}

	text, present := "", false
	if v, ok := payload.Value(); ok {
		encoded, err := s.opts.Serialize(v)
		if err != nil {
			return NewErrorWithCause(ErrCodeValidation, "failed to serialize payload", err)
		}
		text, present = encoded, true
	}
	return s.exec(ctx, notifyStatement(channel, text, present), true)
}

// exec runs stmt on the live connection. Without one it fails with ErrNotConnected
// when required, and succeeds otherwise.
func (s *Session) exec(ctx context.Context, stmt string, required bool) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		if !required {
			s.logger.Debugf("No live connection, skipping %s", stmt)
			return nil
		}
		return NewErrorWithCause(ErrCodeQuery, "statement not sent", ErrNotConnected)
	}
	if err := conn.Exec(ctx, stmt); err != nil {
		return NewErrorWithCause(ErrCodeQuery, "statement failed", err)
	}
	return nil
}

// install makes c the live connection and wires it. s.mu must be held.
func (s *Session) install(c client.Client) {
	s.conn = c
	s.state = StateConnected
	s.wiring = []*Handle{
		forwardNotifications(c, s.events, s.opts.Parse, s.opts.Alerts, s.logger),
		scheduleHealthCheck(c, s.opts.HealthCheckInterval, func(err error) {
			s.logger.Warnf("Health check failed: %v", err)
			s.trigger(c, err)
		}),
		s.watch(c),
	}
}

// watch triggers a reconnect when c ends.
func (s *Session) watch(c client.Client) *Handle {
	stop := make(chan struct{})
	go func() {
		select {
		case <-stop:
		case <-c.Done():
			s.trigger(c, c.Err())
		}
	}()
	return newHandle(func() { close(stop) })
}

// trigger starts a reconnect cycle for from, unless the session is closing, from
// is no longer the live connection or a cycle is already running.
func (s *Session) trigger(from client.Client, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() || s.conn == nil || s.conn != from {
		return
	}
	if !s.reinitializing.CompareAndSwap(false, true) {
		s.suspect, s.suspectCause = from, cause
		return
	}
	s.cycles.Add(1)
	go s.reinitialize(from, cause)
}

// reinitialize replaces the lost connection from and restores subscriptions.
func (s *Session) reinitialize(from client.Client, cause error) {
	defer s.cycles.Done()
	defer s.settle()

	s.mu.Lock()
	if s.closing.Load() || s.conn != from {
		s.mu.Unlock()
		return
	}
	wiring := s.wiring
	s.wiring = nil
	s.conn = nil
	s.state = StateReinitializing
	s.mu.Unlock()

	if cause == nil {
		cause = client.ErrConnectionEnded
	}
	s.logger.Warnf("Connection lost, reconnecting: %v", cause)

	cancelAll(wiring)
	_ = from.Close()

	c, attempts, err := s.reconnector.connect(s.lifetime, s.events.emitReconnect)
	if err != nil {
		if s.closing.Load() {
			return
		}
		s.mu.Lock()
		if s.state == StateReinitializing {
			s.state = StateConnected
		}
		s.mu.Unlock()

		s.logger.Errorf("Reconnect gave up: %v", err)
		if alertErr := s.opts.Alerts.NotifyReconnectExhausted(s.lifetime, err); alertErr != nil {
			s.logger.Warnf("Failed to send reconnect alert: %v", alertErr)
		}
		s.events.emitError(err)
		return
	}

	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = c.Close()
		return
	}
	s.install(c)
	s.mu.Unlock()

	ctx, cancel := s.resubscribeContext()
	err = s.resubscribe(ctx, c)
	cancel()
	if err != nil {
		s.mu.Lock()
		var stale []*Handle
		if s.conn == c {
			stale = s.wiring
			s.wiring = nil
			s.conn = nil
		}
		s.mu.Unlock()

		cancelAll(stale)
		_ = c.Close()
		if s.closing.Load() {
			return
		}

		s.logger.Errorf("Failed to restore subscriptions after reconnect: %v", err)
		s.events.emitError(NewErrorWithCause(ErrCodeQuery, "failed to restore subscriptions after reconnect", err))
		return
	}

	s.logger.Infof("Reconnected after %d attempts", attempts)
	if alertErr := s.opts.Alerts.NotifyReconnected(s.lifetime, attempts); alertErr != nil {
		s.logger.Warnf("Failed to send reconnect alert: %v", alertErr)
	}
	s.events.emitConnected()
}

// settle clears the in-flight flag and catches a connection that ended while the
// flag still suppressed its trigger.
func (s *Session) settle() {
	s.reinitializing.Store(false)

	s.mu.Lock()
	c := s.conn
	suspect, cause := s.suspect, s.suspectCause
	s.suspect, s.suspectCause = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	if suspect == c {
		s.trigger(c, cause)
		return
	}
	select {
	case <-c.Done():
		s.trigger(c, c.Err())
	default:
	}
}

// resubscribeContext bounds restoring subscriptions by one health check
// interval, so a connection that hangs mid-restore is not kept forever.
func (s *Session) resubscribeContext() (context.Context, context.CancelFunc) {
	if s.opts.HealthCheckInterval > 0 {
		return context.WithTimeout(s.lifetime, s.opts.HealthCheckInterval)
	}
	return context.WithCancel(s.lifetime)
}

// resubscribe issues LISTEN for every recorded channel concurrently.
func (s *Session) resubscribe(ctx context.Context, c client.Client) error {
	channels := s.registry.Snapshot()
	if len(channels) == 0 {
		return nil
	}

	errs := make([]error, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Exec(ctx, listenStatement(ch)); err != nil {
				errs[i] = fmt.Errorf("listen %q: %w", ch, err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func validateChannel(channel string) error {
	err := validation.Validate(channel,
		validation.Required,
		validation.Length(1, maxChannelLength),
	)
	if err != nil {
		return NewErrorWithCause(ErrCodeValidation, "invalid channel name", err)
	}
	return nil
}

package client

import (
	"context"
	"sync"

	"github.com/lib/pq"
)

const notificationBuffer = 64

// PQClient implements Client on top of lib/pq's ListenerConn.
//
// Notifications are read by a pump goroutine that converts them and forwards
// them to Notifications(). lib/pq stops reading from the socket while a
// notification send is pending, so the pump drops notifications once Close has
// been called instead of blocking the connection.
//
// TCP keep-alive is enabled through the default net.Dialer used by lib/pq.
type PQClient struct {
	cfg Config

	mu      sync.Mutex
	conn    *pq.ListenerConn
	started bool
	closing bool

	out    chan Notification
	done   chan struct{}
	closed chan struct{}

	endOnce   sync.Once
	closeOnce sync.Once
	err       error
}

// NewPQClient returns an unconnected lib/pq client for cfg.
// It satisfies Factory.
func NewPQClient(cfg Config) Client {
	return &PQClient{
		cfg:    cfg,
		out:    make(chan Notification, notificationBuffer),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Connect dials the server and starts the notification pump.
func (c *PQClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	c.started = true
	c.mu.Unlock()

	type result struct {
		conn *pq.ListenerConn
		err  error
	}

	raw := make(chan *pq.Notification, notificationBuffer)
	dialed := make(chan result, 1)
	go func() {
		conn, err := pq.NewListenerConn(c.cfg.DSN(), raw)
		dialed <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-dialed; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		c.end(ctx.Err())
		return ctx.Err()

	case r := <-dialed:
		if r.err != nil {
			c.end(r.err)
			return r.err
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			_ = r.conn.Close()
			c.end(ErrClosed)
			return ErrClosed
		}
		c.conn = r.conn
		c.mu.Unlock()

		go c.pump(r.conn, raw)
		return nil
	}
}

// pump forwards notifications until lib/pq closes raw, which it does when the
// connection ends for any reason.
func (c *PQClient) pump(conn *pq.ListenerConn, raw <-chan *pq.Notification) {
	for n := range raw {
		if n == nil {
			continue
		}
		select {
		case c.out <- Notification{ProcessID: n.BePid, Channel: n.Channel, Payload: n.Extra}:
		case <-c.closed:
		}
	}

	err := conn.Err()
	if err == nil {
		err = ErrConnectionEnded
	}
	c.end(err)
}

// end records the reason and closes Done and Notifications exactly once.
// It must only be called once the pump can no longer send on out.
func (c *PQClient) end(err error) {
	c.endOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.out)
		close(c.done)
	})
}

// Exec runs query as a simple query. The context bounds the wait, not the
// server-side execution.
func (c *PQClient) Exec(ctx context.Context, query string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	select {
	case <-c.done:
		return ErrConnectionEnded
	default:
	}

	result := make(chan error, 1)
	go func() {
		executed, err := conn.ExecSimpleQuery(query)
		if err == nil && !executed {
			err = ErrConnectionEnded
		}
		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notifications implements Client.
func (c *PQClient) Notifications() <-chan Notification {
	return c.out
}

// Done implements Client.
func (c *PQClient) Done() <-chan struct{} {
	return c.done
}

// Err implements Client.
func (c *PQClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close terminates the connection. The pump observes the closed socket and
// closes Done.
func (c *PQClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		c.closing = true
		conn := c.conn
		started := c.started
		c.mu.Unlock()

		if conn == nil {
			if !started {
				c.end(ErrClosed)
			}
			// A dial still in flight is closed by Connect once it sees closing.
			return
		}
		err = conn.Close()
	})
	return err
}

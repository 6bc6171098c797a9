// Package clienttest provides a scriptable in-memory client.Client for tests.
package clienttest

import (
	"context"
	"errors"
	"sync"

	"github.com/coregx/pglisten/client"
)

// ErrInjected is a generic failure used by behaviors below.
var ErrInjected = errors.New("clienttest: injected failure")

// Fake is an in-memory client.Client. Tests drive it with Emit and Fail and
// inspect it with Queries and CloseCalls.
type Fake struct {
	// ID is the creation index assigned by a Dialer (1-based), 0 otherwise.
	ID int

	mu         sync.Mutex
	connectErr error
	execErr    func(query string) error
	connected  bool
	ended      bool
	err        error
	queries    []string
	closeCalls int

	notifications chan client.Notification
	done          chan struct{}
}

// NewFake returns an unconnected fake whose Connect succeeds.
func NewFake() *Fake {
	return &Fake{
		notifications: make(chan client.Notification, 256),
		done:          make(chan struct{}),
	}
}

// FailConnect makes Connect return err.
func (f *Fake) FailConnect(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
	return f
}

// FailExec makes Exec consult fn; a non-nil result is returned to the caller.
func (f *Fake) FailExec(fn func(query string) error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr = fn
	return f
}

// Connect implements client.Client.
func (f *Fake) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return client.ErrClosed
	}
	if f.connectErr != nil {
		f.endLocked(f.connectErr)
		return f.connectErr
	}
	f.connected = true
	return nil
}

// Exec implements client.Client. Every statement is recorded, including failed ones.
func (f *Fake) Exec(ctx context.Context, query string) error {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	connected, ended, execErr := f.connected, f.ended, f.execErr
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if ended {
		return client.ErrConnectionEnded
	}
	if !connected {
		return client.ErrNotConnected
	}
	if execErr != nil {
		return execErr(query)
	}
	return nil
}

// Notifications implements client.Client.
func (f *Fake) Notifications() <-chan client.Notification {
	return f.notifications
}

// Done implements client.Client.
func (f *Fake) Done() <-chan struct{} {
	return f.done
}

// Err implements client.Client.
func (f *Fake) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close implements client.Client.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.endLocked(client.ErrClosed)
	return nil
}

// Emit delivers a notification as if the server sent it.
// It reports false when the connection has already ended.
func (f *Fake) Emit(n client.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return false
	}
	f.notifications <- n
	return true
}

// Fail ends the connection with err, simulating a server-side error or end.
// Calling it again has no further effect.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endLocked(err)
}

func (f *Fake) endLocked(err error) {
	if f.ended {
		return
	}
	f.ended = true
	f.err = err
	close(f.notifications)
	close(f.done)
}

// Queries returns the statements executed so far.
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// CountQuery returns how many times query was executed.
func (f *Fake) CountQuery(query string) int {
	n := 0
	for _, q := range f.Queries() {
		if q == query {
			n++
		}
	}
	return n
}

// CloseCalls returns how many times Close was called.
func (f *Fake) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// Ended reports whether the connection has ended.
func (f *Fake) Ended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

// Dialer hands out fakes in creation order. Behavior i configures the i-th fake;
// fakes beyond the scripted ones use Default, or connect successfully when it is nil.
type Dialer struct {
	Default func(*Fake)

	mu        sync.Mutex
	behaviors []func(*Fake)
	created   []*Fake
}

// NewDialer returns a Dialer scripted with behaviors.
func NewDialer(behaviors ...func(*Fake)) *Dialer {
	return &Dialer{behaviors: behaviors}
}

// Factory returns the client.Factory backed by this dialer.
func (d *Dialer) Factory() client.Factory {
	return func(client.Config) client.Client {
		d.mu.Lock()
		defer d.mu.Unlock()

		f := NewFake()
		f.ID = len(d.created) + 1
		switch {
		case len(d.created) < len(d.behaviors) && d.behaviors[len(d.created)] != nil:
			d.behaviors[len(d.created)](f)
		case len(d.created) >= len(d.behaviors) && d.Default != nil:
			d.Default(f)
		}
		d.created = append(d.created, f)
		return f
	}
}

// SetDefault replaces the behavior of fakes beyond the scripted ones.
func (d *Dialer) SetDefault(fn func(*Fake)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Default = fn
}

// Created returns every fake built so far.
func (d *Dialer) Created() []*Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Fake(nil), d.created...)
}

// Count returns how many fakes were built.
func (d *Dialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.created)
}

// Get returns the i-th fake (1-based), or nil.
func (d *Dialer) Get(i int) *Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 1 || i > len(d.created) {
		return nil
	}
	return d.created[i-1]
}

// Succeed is a behavior that leaves the fake connecting successfully.
func Succeed(*Fake) {}

// RefuseConnect is a behavior that makes Connect fail.
func RefuseConnect(f *Fake) {
	f.FailConnect(ErrInjected)
}

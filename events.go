package pglisten

import (
	"sync"

	"github.com/coregx/pglisten/model"
)

// Handle releases a registration, timer or background goroutine.
// Cancel is idempotent and safe to call on a nil Handle.
type Handle struct {
	once   sync.Once
	cancel func()
}

func newHandle(cancel func()) *Handle {
	return &Handle{cancel: cancel}
}

// Cancel releases the resource. Only the first call has an effect.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

func cancelAll(handles []*Handle) {
	for _, h := range handles {
		h.Cancel()
	}
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// dispatcher delivers values to its listeners synchronously, in registration order.
type dispatcher[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []listener[T]
}

func (d *dispatcher[T]) subscribe(fn func(T)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.listeners = append(d.listeners, listener[T]{id: d.nextID, fn: fn})
	return d.nextID
}

func (d *dispatcher[T]) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			return
		}
	}
}

func (d *dispatcher[T]) emit(v T) {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()

	for _, l := range listeners {
		l.fn(v)
	}
}

func (d *dispatcher[T]) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

// EventBus is the public event surface of a Session.
//
// The global surface carries connected, error, notification and reconnect events.
// The per-channel surface carries only the decoded payload of notifications on
// one channel. Listeners run on the goroutine that emits the event and must not
// block; a listener may register or cancel other listeners.
type EventBus struct {
	connected     dispatcher[struct{}]
	errs          dispatcher[error]
	notifications dispatcher[model.Notification]
	reconnects    dispatcher[int]

	mu       sync.Mutex
	channels map[string]*dispatcher[model.Payload]
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		channels: make(map[string]*dispatcher[model.Payload]),
	}
}

// OnConnected registers fn for every successful connect and reconnect.
func (b *EventBus) OnConnected(fn func()) *Handle {
	id := b.connected.subscribe(func(struct{}) { fn() })
	return newHandle(func() { b.connected.unsubscribe(id) })
}

// OnError registers fn for asynchronous errors: decode failures, reconnect
// exhaustion and failed resubscription.
func (b *EventBus) OnError(fn func(error)) *Handle {
	id := b.errs.subscribe(fn)
	return newHandle(func() { b.errs.unsubscribe(id) })
}

// OnNotification registers fn for every decoded notification on any channel.
func (b *EventBus) OnNotification(fn func(model.Notification)) *Handle {
	id := b.notifications.subscribe(fn)
	return newHandle(func() { b.notifications.unsubscribe(id) })
}

// OnReconnect registers fn for every reconnect attempt, failed ones included.
// The argument is the one-based attempt number within the current cycle.
func (b *EventBus) OnReconnect(fn func(attempt int)) *Handle {
	id := b.reconnects.subscribe(fn)
	return newHandle(func() { b.reconnects.unsubscribe(id) })
}

// OnChannel registers fn for the decoded payloads of notifications on channel.
// Registering does not LISTEN; use Session.ListenTo for that.
func (b *EventBus) OnChannel(channel string, fn func(model.Payload)) *Handle {
	b.mu.Lock()
	d, ok := b.channels[channel]
	if !ok {
		d = &dispatcher[model.Payload]{}
		b.channels[channel] = d
	}
	id := d.subscribe(fn)
	b.mu.Unlock()

	return newHandle(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		d.unsubscribe(id)
		if d.len() == 0 && b.channels[channel] == d {
			delete(b.channels, channel)
		}
	})
}

// ChannelListeners returns the number of listeners registered for channel.
func (b *EventBus) ChannelListeners(channel string) int {
	b.mu.Lock()
	d, ok := b.channels[channel]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return d.len()
}

func (b *EventBus) emitConnected() {
	b.connected.emit(struct{}{})
}

func (b *EventBus) emitError(err error) {
	b.errs.emit(err)
}

func (b *EventBus) emitReconnect(attempt int) {
	b.reconnects.emit(attempt)
}

func (b *EventBus) emitNotification(n model.Notification) {
	b.notifications.emit(n)

	b.mu.Lock()
	d, ok := b.channels[n.Channel]
	b.mu.Unlock()
	if ok {
		d.emit(n.Payload)
	}
}

package pglisten

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/client/clienttest"
	"github.com/coregx/pglisten/model"
)

func connectedFake(t *testing.T) *clienttest.Fake {
	t.Helper()
	f := clienttest.NewFake()
	require.NoError(t, f.Connect(context.Background()))
	return f
}

func TestForwarder_DecodeIsolation(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	errs := make(chan error, 10)
	notifications := make(chan model.Notification, 10)
	bus.OnError(func(err error) { errs <- err })
	bus.OnNotification(func(n model.Notification) { notifications <- n })

	h := forwardNotifications(f, bus, JSONParse, &NoOpAlertService{}, &NoopLogger{})
	defer h.Cancel()

	f.Emit(client.Notification{ProcessID: 7, Channel: "orders", Payload: `{broken`})
	f.Emit(client.Notification{ProcessID: 7, Channel: "orders", Payload: `{"ok":true}`})

	select {
	case n := <-notifications:
		assert.Equal(t, "orders", n.Channel)
		assert.Equal(t, 7, n.ProcessID)
		assert.Equal(t, map[string]any{"ok": true}, n.Payload.Get())
	case <-time.After(time.Second):
		t.Fatal("well-formed notification not delivered")
	}

	require.Len(t, errs, 1)
	err := <-errs
	assert.True(t, IsCode(err, ErrCodeDecode))
	assert.Contains(t, err.Error(), "orders")
	assert.Empty(t, notifications)
}

func TestForwarder_PreservesOrder(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	const count = 50
	got := make(chan float64, count)
	bus.OnChannel("seq", func(p model.Payload) { got <- p.Get().(float64) })

	h := forwardNotifications(f, bus, JSONParse, &NoOpAlertService{}, &NoopLogger{})
	defer h.Cancel()

	for i := 1; i <= count; i++ {
		f.Emit(client.Notification{Channel: "seq", Payload: fmt.Sprintf("%d", i)})
	}

	for i := 1; i <= count; i++ {
		select {
		case v := <-got:
			assert.Equal(t, float64(i), v)
		case <-time.After(time.Second):
			t.Fatalf("notification %d not delivered", i)
		}
	}
}

func TestForwarder_EmptyPayloadIsAbsent(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	parsed := false
	parse := func(string) (any, error) {
		parsed = true
		return nil, fmt.Errorf("unexpected parse")
	}

	got := make(chan model.Payload, 1)
	bus.OnChannel("ping", func(p model.Payload) { got <- p })

	h := forwardNotifications(f, bus, parse, &NoOpAlertService{}, &NoopLogger{})
	defer h.Cancel()

	f.Emit(client.Notification{Channel: "ping"})

	select {
	case p := <-got:
		assert.False(t, p.IsPresent())
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	assert.False(t, parsed)
}

func TestForwarder_RecoversParsePanic(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	errs := make(chan error, 1)
	bus.OnError(func(err error) { errs <- err })

	parse := func(string) (any, error) { panic("bad codec") }
	h := forwardNotifications(f, bus, parse, &NoOpAlertService{}, &NoopLogger{})
	defer h.Cancel()

	f.Emit(client.Notification{Channel: "c", Payload: "x"})

	select {
	case err := <-errs:
		assert.True(t, IsCode(err, ErrCodeDecode))
		assert.Contains(t, err.Error(), "bad codec")
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}
}

func TestForwarder_AlertsOnDecodeFailure(t *testing.T) {
	f := connectedFake(t)
	alerts := newRecordingAlerts()

	h := forwardNotifications(f, NewEventBus(), JSONParse, alerts, &NoopLogger{})
	defer h.Cancel()

	f.Emit(client.Notification{Channel: "orders", Payload: "nope"})

	require.Eventually(t, func() bool { return alerts.decodeFailures() == 1 }, time.Second, 5*time.Millisecond)
}

func TestForwarder_CancelDetaches(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	got := make(chan model.Notification, 1)
	bus.OnNotification(func(n model.Notification) { got <- n })

	h := forwardNotifications(f, bus, JSONParse, &NoOpAlertService{}, &NoopLogger{})
	h.Cancel()
	h.Cancel()

	f.Emit(client.Notification{Channel: "c", Payload: "1"})

	select {
	case <-got:
		t.Fatal("notification delivered after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwarder_StopsWhenConnectionEnds(t *testing.T) {
	f := connectedFake(t)
	bus := NewEventBus()

	h := forwardNotifications(f, bus, JSONParse, &NoOpAlertService{}, &NoopLogger{})
	f.Fail(fmt.Errorf("gone"))

	assert.NotPanics(t, h.Cancel)
}

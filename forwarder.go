package pglisten

import (
	"context"
	"fmt"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/model"
)

// forwardNotifications decodes the notifications of conn and publishes them on bus
// until conn ends or the returned handle is canceled.
//
// One goroutine serves one connection and dispatches synchronously, so listeners
// observe the connection's order. A payload that fails to decode produces one
// error event and is dropped.
func forwardNotifications(conn client.Client, bus *EventBus, parse ParseFunc, alerts AlertService, logger Logger) *Handle {
	stop := make(chan struct{})
	notifications := conn.Notifications()

	go func() {
		for {
			select {
			case <-stop:
				return
			case raw, ok := <-notifications:
				if !ok {
					return
				}
				select {
				case <-stop:
					return
				default:
				}

				n, err := decodeNotification(raw, parse)
				if err != nil {
					logger.Warnf("Dropping notification on channel %q: %v", raw.Channel, err)
					if alertErr := alerts.NotifyDecodeFailure(context.Background(), raw.Channel, err); alertErr != nil {
						logger.Warnf("Failed to send decode failure alert: %v", alertErr)
					}
					bus.emitError(err)
					continue
				}
				bus.emitNotification(n)
			}
		}
	}()

	return newHandle(func() { close(stop) })
}

// decodeNotification converts a raw notification. An empty payload is absent and
// is not passed to parse.
func decodeNotification(raw client.Notification, parse ParseFunc) (model.Notification, error) {
	payload := model.NoPayload()
	if raw.Payload != "" {
		v, err := safeParse(parse, raw.Payload)
		if err != nil {
			return model.Notification{}, NewErrorWithCause(ErrCodeDecode,
				fmt.Sprintf("failed to decode payload on channel %q", raw.Channel), err)
		}
		payload = model.PayloadOf(v)
	}
	return model.NewNotification(raw.ProcessID, raw.Channel, raw.Payload, payload), nil
}

func safeParse(parse ParseFunc, raw string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse panicked: %v", r)
		}
	}()
	return parse(raw)
}

package pglisten

import "context"

// AlertService is an optional hook for session events that deserve attention
// beyond the event bus: alerting, paging, metrics.
//
// Implementations might send emails, Slack messages or log to monitoring systems.
// Errors returned by an AlertService are logged and otherwise ignored.
type AlertService interface {
	// NotifyReconnectExhausted is called when a reconnect cycle gives up.
	// The session stays without a live connection until Connect is called again.
	NotifyReconnectExhausted(ctx context.Context, err error) error

	// NotifyDecodeFailure is called when a notification payload cannot be decoded.
	NotifyDecodeFailure(ctx context.Context, channel string, err error) error

	// NotifyReconnected is called after a successful reconnect cycle.
	NotifyReconnected(ctx context.Context, attempts int) error
}

// NoOpAlertService is a no-op implementation of AlertService.
// Use this when alerts are not needed.
type NoOpAlertService struct{}

// NotifyReconnectExhausted does nothing.
func (n *NoOpAlertService) NotifyReconnectExhausted(_ context.Context, _ error) error {
	return nil
}

// NotifyDecodeFailure does nothing.
func (n *NoOpAlertService) NotifyDecodeFailure(_ context.Context, _ string, _ error) error {
	return nil
}

// NotifyReconnected does nothing.
func (n *NoOpAlertService) NotifyReconnected(_ context.Context, _ int) error {
	return nil
}

// LoggingAlertService is a simple implementation that logs alerts.
type LoggingAlertService struct {
	logger Logger
}

// NewLoggingAlertService creates a new LoggingAlertService.
func NewLoggingAlertService(logger Logger) *LoggingAlertService {
	return &LoggingAlertService{logger: logger}
}

// NotifyReconnectExhausted logs the exhausted reconnect cycle.
func (n *LoggingAlertService) NotifyReconnectExhausted(_ context.Context, err error) error {
	n.logger.Errorf("🔴 Reconnect exhausted, session has no live connection: %v", err)
	return nil
}

// NotifyDecodeFailure logs the dropped notification.
func (n *LoggingAlertService) NotifyDecodeFailure(_ context.Context, channel string, err error) error {
	n.logger.Warnf("⚠️ Notification dropped: channel=%s, error=%v", channel, err)
	return nil
}

// NotifyReconnected logs the restored connection.
func (n *LoggingAlertService) NotifyReconnected(_ context.Context, attempts int) error {
	n.logger.Infof("✅ Connection restored: attempts=%d", attempts)
	return nil
}

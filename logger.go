package pglisten

import "fmt"

// Logger defines the logging interface required by the pglisten library.
// Implement this interface to integrate your logging system, or use the
// zerolog-backed implementation in adapters/zlog.
//
// Example implementation:
//
//	type ZapLogger struct {
//	    logger *zap.Logger
//	}
//
//	func (l *ZapLogger) Infof(format string, args ...interface{}) {
//	    l.logger.Sugar().Infof(format, args...)
//	}
type Logger interface {
	// Debugf logs debug-level messages with printf-style formatting.
	Debugf(format string, args ...interface{})

	// Infof logs info-level messages with printf-style formatting.
	Infof(format string, args ...interface{})

	// Warnf logs warning-level messages with printf-style formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs error-level messages with printf-style formatting.
	Errorf(format string, args ...interface{})

	// Info logs info-level messages without formatting.
	Info(message string)
}

// NoopLogger is a no-operation logger implementation useful for testing
// or when logging is not desired. All methods are no-ops.
type NoopLogger struct{}

// Debugf implements Logger.Debugf as a no-op.
func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}

// Infof implements Logger.Infof as a no-op.
func (l *NoopLogger) Infof(_ string, _ ...interface{}) {}

// Warnf implements Logger.Warnf as a no-op.
func (l *NoopLogger) Warnf(_ string, _ ...interface{}) {}

// Errorf implements Logger.Errorf as a no-op.
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}

// Info implements Logger.Info as a no-op.
func (l *NoopLogger) Info(_ string) {}

// prefixLogger tags every line with a fixed prefix, e.g. the session name.
type prefixLogger struct {
	next   Logger
	prefix string
}

// withPrefix returns a Logger that prepends "[prefix] " to every message.
// An empty prefix returns l unchanged.
func withPrefix(l Logger, prefix string) Logger {
	if prefix == "" {
		return l
	}
	return &prefixLogger{next: l, prefix: "[" + prefix + "] "}
}

func (l *prefixLogger) Debugf(format string, args ...interface{}) {
	l.next.Debugf("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Infof(format string, args ...interface{}) {
	l.next.Infof("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Warnf(format string, args ...interface{}) {
	l.next.Warnf("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Errorf(format string, args ...interface{}) {
	l.next.Errorf("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l *prefixLogger) Info(message string) {
	l.next.Info(l.prefix + message)
}

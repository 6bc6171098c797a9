// Package zlog adapts github.com/rs/zerolog to the pglisten.Logger interface.
package zlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/coregx/pglisten"
)

// Logger implements pglisten.Logger on top of a zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

var _ pglisten.Logger = (*Logger)(nil)

// New wraps an existing zerolog logger.
func New(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// NewConsole returns a human-readable logger writing to out, tagged with app.
// A nil out writes to stderr.
func NewConsole(out io.Writer, app string, level zerolog.Level) *Logger {
	if out == nil {
		out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return New(zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger())
}

// NewJSON returns a structured JSON logger writing to out, tagged with app.
func NewJSON(out io.Writer, app string, level zerolog.Level) *Logger {
	return New(zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger())
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debugf implements pglisten.Logger.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Infof implements pglisten.Logger.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warnf implements pglisten.Logger.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Errorf implements pglisten.Logger.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Info implements pglisten.Logger.
func (l *Logger) Info(message string) {
	l.zl.Info().Msg(message)
}

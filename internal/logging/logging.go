// Package logging defines the minimal logging contract shared by the
// stocksync services and the broker layer.
package logging

import (
	"log/slog"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract required by stocksync components.
// It keeps the broker and handler packages independent of a concrete logger
// so applications can adapt their existing loggers.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies the ServiceLogger
// interface.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("stocksync: slog logger cannot be nil")
	}
	return &slogServiceLogger{inner: log}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() ServiceLogger {
	return nopLogger{}
}

type slogServiceLogger struct {
	inner *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{inner: s.inner.With(toArgs(fields)...)}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Warn(msg string, fields LogFields) {
	s.inner.Warn(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	args := toArgs(fields)
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	s.inner.Error(msg, args...)
}

func toArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, slog.Any(key, value))
	}
	return args
}

type nopLogger struct{}

func (nopLogger) With(LogFields) ServiceLogger   { return nopLogger{} }
func (nopLogger) Debug(string, LogFields)        {}
func (nopLogger) Info(string, LogFields)         {}
func (nopLogger) Warn(string, LogFields)         {}
func (nopLogger) Error(string, error, LogFields) {}

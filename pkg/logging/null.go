package logging

import "context"

// NullLogger discards every entry. It is used whenever logging is disabled
// and is embedded by test loggers that only record some levels.
type NullLogger struct{}

// NewNullLogger returns a logger that discards everything
func NewNullLogger() NullLogger {
	return NullLogger{}
}

func (NullLogger) Debug(context.Context, string, Fields)        {}
func (NullLogger) Info(context.Context, string, Fields)         {}
func (NullLogger) Warn(context.Context, string, Fields)         {}
func (NullLogger) Error(context.Context, string, error, Fields) {}
func (n NullLogger) WithFields(Fields) Logger                   { return n }
func (NullLogger) Close() error                                 { return nil }

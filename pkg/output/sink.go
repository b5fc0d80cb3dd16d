package output

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sdejongh/assurance/pkg/logging"
)

// Sink receives human-readable progress messages.
// Publish is called concurrently from pool workers and must not block for long.
type Sink interface {
	Publish(msg string)
}

// NullSink discards every message
type NullSink struct{}

// Publish does nothing
func (NullSink) Publish(string) {}

// OrNull returns s, or a NullSink when s is nil
func OrNull(s Sink) Sink {
	if s == nil {
		return NullSink{}
	}
	return s
}

// FuncSink adapts a function to Sink
type FuncSink func(msg string)

// Publish calls f
func (f FuncSink) Publish(msg string) {
	if f != nil {
		f(msg)
	}
}

// WriterSink writes one message per line
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Publish writes msg; empty messages are dropped
func (s *WriterSink) Publish(msg string) {
	if msg == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, msg)
}

// LoggerSink forwards messages to a logger at debug level
type LoggerSink struct {
	logger logging.Logger
}

// NewLoggerSink creates a sink that logs every message
func NewLoggerSink(logger logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logging.OrNull(logger)}
}

// Publish logs msg
func (s *LoggerSink) Publish(msg string) {
	if msg == "" {
		return
	}
	s.logger.Debug(context.Background(), msg, nil)
}

// MultiSink fans each message out to several sinks
type MultiSink []Sink

// Publish forwards msg to every non-nil sink
func (m MultiSink) Publish(msg string) {
	for _, s := range m {
		if s != nil {
			s.Publish(msg)
		}
	}
}

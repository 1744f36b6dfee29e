// Package logsink ships structured run events to an external channel.
// Sinks are strictly best-effort: a sink that cannot deliver logs the
// failure locally and drops the event. Reminder delivery never waits on
// or fails because of a log sink.
package logsink

import (
	"context"
	"log"
)

// Event levels.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Event types.
const (
	TypeEvent = "event"
	TypeError = "error"
)

// Sink receives fire-and-forget structured events.
type Sink interface {
	Event(ctx context.Context, typ, message string, data map[string]any, level string)
}

// StdSink writes events to the process log. Used when no webhook is
// configured.
type StdSink struct{}

// NewStdSink returns a sink backed by the standard logger.
func NewStdSink() *StdSink {
	return &StdSink{}
}

func (s *StdSink) Event(ctx context.Context, typ, message string, data map[string]any, level string) {
	if len(data) > 0 {
		log.Printf("logsink: [%s/%s] %s data=%v", typ, level, message, data)
		return
	}
	log.Printf("logsink: [%s/%s] %s", typ, level, message)
}

var _ Sink = (*StdSink)(nil)

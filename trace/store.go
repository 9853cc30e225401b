// Package trace provides two concrete tracer backends satisfying
// nodeflow.Tracer (an in-process console writer and an OpenTelemetry
// bridge) and SQL-backed stores for the bit-stable span/event wire schema.
// The stores implement Store, not nodeflow.Tracer: records reach them only
// through SaveSpan/SaveEvent.
package trace

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested trace id has no persisted spans.
var ErrNotFound = errors.New("trace: not found")

// SpanRecord is the persisted row shape for one span, per spec.md section 6.
type SpanRecord struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	ServiceName  string
	Kind         string
	Name         string
	Attributes   string // JSON-encoded
	Status       string
	Error        string
	StartTime    string // ISO-8601
	EndTime      string
}

// EventRecord is the persisted row shape for one event, per spec.md
// section 6.
type EventRecord struct {
	TraceID    string
	SpanID     string
	EventType  string
	Level      string
	Message    string
	Attributes string // JSON-encoded
	Timestamp  string // ISO-8601
}

// Store persists spans and events to a durable backend for later
// inspection. Out of scope: reading them back into a UI (spec.md's
// "persistent trace readers" Non-goal) — Store is write-only plus the
// minimal lookup needed by tests.
type Store interface {
	SaveSpan(ctx context.Context, rec SpanRecord) error
	SaveEvent(ctx context.Context, rec EventRecord) error
	SpansByTrace(ctx context.Context, traceID string) ([]SpanRecord, error)
	Close() error
}

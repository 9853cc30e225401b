package nodeflow

import "time"

// Span kinds used by the core, per spec.md section 4.6.
const (
	SpanKindFlow  = "flow"
	SpanKindNode  = "node"
	SpanKindEvent = "event"
)

// Span statuses.
const (
	StatusOK        = "OK"
	StatusError     = "ERROR"
	StatusCancelled = "CANCELLED"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Span is the persisted, bit-stable span shape of spec.md section 6.
type Span struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	ServiceName  string
	Kind         string
	Name         string
	Attributes   map[string]any
	Status       string
	Error        string
	StartTime    time.Time
	EndTime      time.Time
}

// Event is the persisted, bit-stable event shape of spec.md section 6.
type Event struct {
	TraceID    string
	SpanID     string
	EventType  string
	Level      string
	Message    string
	Attributes map[string]any
	Timestamp  time.Time
}

// Tracer is the capability set a tracer backend must implement, per
// spec.md section 4.6. Tracer exceptions never propagate into the
// scheduler — callers of Tracer methods are expected to swallow panics via
// SpanStack, not the tracer itself.
type Tracer interface {
	OnSpanStart(span Span)
	OnSpanEnd(span Span)
	OnEvent(event Event)
}

// NopTracer discards everything; the zero-value default when a flow runs
// without an attached tracer.
type NopTracer struct{}

func (NopTracer) OnSpanStart(Span) {}
func (NopTracer) OnSpanEnd(Span)   {}
func (NopTracer) OnEvent(Event)    {}

package nodeflow

import (
	"time"

	"github.com/google/uuid"
)

// SpanStack manages the span nesting for one flow invocation: strictly
// nested push/pop, trace-id propagation, and tracer-exception swallowing.
// Grounded on the original's SpanTracker.
type SpanStack struct {
	tracer      Tracer
	serviceName string
	traceID     string
	stack       []string
	spans       map[string]Span
}

// NewSpanStack starts a fresh trace. tracer may be nil, in which case every
// operation is a no-op beyond trace-id bookkeeping.
func NewSpanStack(tracer Tracer, serviceName string) *SpanStack {
	if tracer == nil {
		tracer = NopTracer{}
	}
	if serviceName == "" {
		serviceName = "nodeflow"
	}
	return &SpanStack{
		tracer:      tracer,
		serviceName: serviceName,
		traceID:     uuid.New().String(),
		spans:       map[string]Span{},
	}
}

// TraceID returns the trace id shared by every span this stack opens.
func (s *SpanStack) TraceID() string { return s.traceID }

// currentSpanID returns the innermost open span id, or "".
func (s *SpanStack) currentSpanID() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}

// StartSpan opens a new span nested under the current top of stack and
// returns its id. Tracer panics are swallowed, per spec.md section 4.6.
func (s *SpanStack) StartSpan(kind, name string, attributes map[string]any) string {
	spanID := uuid.New().String()
	span := Span{
		TraceID:      s.traceID,
		SpanID:       spanID,
		ParentSpanID: s.currentSpanID(),
		ServiceName:  s.serviceName,
		Kind:         kind,
		Name:         name,
		Attributes:   attributes,
		StartTime:    time.Now().UTC(),
	}
	s.spans[spanID] = span
	s.safeStart(span)
	s.stack = append(s.stack, spanID)
	return spanID
}

// EndSpan closes the span identified by spanID, popping it and any spans
// opened after it (defensive, mirrors the original's unwind-to-match loop).
func (s *SpanStack) EndSpan(spanID string, status string, errMsg string, attributes map[string]any) {
	found := false
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == spanID {
			s.stack = s.stack[:i]
			found = true
			break
		}
	}
	if !found {
		return
	}
	span, ok := s.spans[spanID]
	if !ok {
		return
	}
	delete(s.spans, spanID)
	span.EndTime = time.Now().UTC()
	span.Status = status
	span.Error = errMsg
	if attributes != nil {
		if span.Attributes == nil {
			span.Attributes = map[string]any{}
		}
		for k, v := range attributes {
			span.Attributes[k] = v
		}
	}
	s.safeEnd(span)
}

// EmitEvent records a structured event against the currently open span, if
// any. Events against no open span are dropped, matching the original's
// "no active span → no-op" behavior.
func (s *SpanStack) EmitEvent(eventType, level, message string, attributes map[string]any) {
	spanID := s.currentSpanID()
	if spanID == "" {
		return
	}
	s.safeEvent(Event{
		TraceID:    s.traceID,
		SpanID:     spanID,
		EventType:  eventType,
		Level:      level,
		Message:    message,
		Attributes: attributes,
		Timestamp:  time.Now().UTC(),
	})
}

// Close force-ends every still-open span, innermost first, with status
// CANCELLED — used on flow-level cancellation per spec.md section 5.
func (s *SpanStack) Close(status string) {
	for len(s.stack) > 0 {
		spanID := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		span, ok := s.spans[spanID]
		if !ok {
			continue
		}
		delete(s.spans, spanID)
		span.EndTime = time.Now().UTC()
		span.Status = status
		s.safeEnd(span)
	}
}

func (s *SpanStack) safeStart(span Span) {
	defer func() { recover() }()
	s.tracer.OnSpanStart(span)
}

func (s *SpanStack) safeEnd(span Span) {
	defer func() { recover() }()
	s.tracer.OnSpanEnd(span)
}

func (s *SpanStack) safeEvent(event Event) {
	defer func() { recover() }()
	s.tracer.OnEvent(event)
}

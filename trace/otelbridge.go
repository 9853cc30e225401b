package trace

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow"
)

// OTelBridge adapts nodeflow.Tracer onto a real OpenTelemetry tracer,
// keeping spans open across the start/end pair the scheduler calls, unlike
// the teacher's OTelEmitter (which emits instantaneous per-event spans).
// Grounded on the teacher's graph/emit/otel.go for the attribute-mapping
// conventions, generalized to genuinely nested spans since nodeflow's
// SpanStack already models parent/child structure explicitly.
type OTelBridge struct {
	tracer oteltrace.Tracer

	mu    sync.Mutex
	ctxs  map[string]context.Context
	spans map[string]oteltrace.Span
}

// NewOTelBridge wraps an OpenTelemetry tracer obtained via otel.Tracer(name).
func NewOTelBridge(tracer oteltrace.Tracer) *OTelBridge {
	return &OTelBridge{
		tracer: tracer,
		ctxs:   map[string]context.Context{},
		spans:  map[string]oteltrace.Span{},
	}
}

func (b *OTelBridge) OnSpanStart(span nodeflow.Span) {
	parentCtx := context.Background()
	b.mu.Lock()
	if span.ParentSpanID != "" {
		if pc, ok := b.ctxs[span.ParentSpanID]; ok {
			parentCtx = pc
		}
	}
	b.mu.Unlock()

	ctx, otelSpan := b.tracer.Start(parentCtx, span.Name,
		oteltrace.WithAttributes(
			attribute.String("trace_id", span.TraceID),
			attribute.String("span_id", span.SpanID),
			attribute.String("kind", span.Kind),
			attribute.String("service_name", span.ServiceName),
		),
	)
	otelSpan.SetAttributes(attributesOf(span.Attributes)...)

	b.mu.Lock()
	b.ctxs[span.SpanID] = ctx
	b.spans[span.SpanID] = otelSpan
	b.mu.Unlock()
}

func (b *OTelBridge) OnSpanEnd(span nodeflow.Span) {
	b.mu.Lock()
	otelSpan, ok := b.spans[span.SpanID]
	delete(b.spans, span.SpanID)
	delete(b.ctxs, span.SpanID)
	b.mu.Unlock()
	if !ok {
		return
	}
	otelSpan.SetAttributes(attributesOf(span.Attributes)...)
	switch span.Status {
	case nodeflow.StatusError:
		otelSpan.SetStatus(codes.Error, span.Error)
	case nodeflow.StatusCancelled:
		otelSpan.SetStatus(codes.Error, "cancelled")
	default:
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End()
}

func (b *OTelBridge) OnEvent(event nodeflow.Event) {
	b.mu.Lock()
	otelSpan, ok := b.spans[event.SpanID]
	b.mu.Unlock()
	if !ok {
		return
	}
	otelSpan.AddEvent(event.EventType, oteltrace.WithAttributes(attributesOf(event.Attributes)...))
}

func attributesOf(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		if s, ok := v.(string); ok {
			out = append(out, attribute.String(k, s))
			continue
		}
		out = append(out, attribute.String(k, fmt.Sprint(v)))
	}
	return out
}

package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nodeflow/nodeflow"
)

func newRecordingOTel(t *testing.T) (*OTelBridge, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewOTelBridge(provider.Tracer("nodeflow-test")), recorder
}

func TestOTelBridge_StartEndProducesOneCompletedSpan(t *testing.T) {
	bridge, recorder := newRecordingOTel(t)

	span := nodeflow.Span{TraceID: "t1", SpanID: "s1", Kind: nodeflow.SpanKindFlow, Name: "flow", Attributes: map[string]any{"entry": "a"}}
	bridge.OnSpanStart(span)
	span.Status = nodeflow.StatusOK
	bridge.OnSpanEnd(span)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "flow", ended[0].Name())
}

func TestOTelBridge_NestsChildUnderParentContext(t *testing.T) {
	bridge, recorder := newRecordingOTel(t)

	parent := nodeflow.Span{TraceID: "t1", SpanID: "parent", Kind: nodeflow.SpanKindFlow, Name: "flow"}
	bridge.OnSpanStart(parent)
	child := nodeflow.Span{TraceID: "t1", SpanID: "child", ParentSpanID: "parent", Kind: nodeflow.SpanKindNode, Name: "n1"}
	bridge.OnSpanStart(child)

	child.Status = nodeflow.StatusOK
	bridge.OnSpanEnd(child)
	parent.Status = nodeflow.StatusOK
	bridge.OnSpanEnd(parent)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	var childSpan, parentSpan sdktrace.ReadOnlySpan
	for _, s := range ended {
		if s.Name() == "n1" {
			childSpan = s
		} else {
			parentSpan = s
		}
	}
	require.Equal(t, parentSpan.SpanContext().SpanID(), childSpan.Parent().SpanID())
}

func TestOTelBridge_OnSpanEnd_UnknownSpanIDIsNoop(t *testing.T) {
	bridge, recorder := newRecordingOTel(t)
	bridge.OnSpanEnd(nodeflow.Span{SpanID: "ghost"})
	require.Empty(t, recorder.Ended())
}

func TestOTelBridge_OnEvent_UnknownSpanIDIsNoop(t *testing.T) {
	bridge, _ := newRecordingOTel(t)
	require.NotPanics(t, func() {
		bridge.OnEvent(nodeflow.Event{SpanID: "ghost", EventType: "x"})
	})
}

func TestOTelBridge_CancelledMapsToErrorStatus(t *testing.T) {
	bridge, recorder := newRecordingOTel(t)
	span := nodeflow.Span{TraceID: "t1", SpanID: "s1", Kind: nodeflow.SpanKindFlow, Name: "flow"}
	bridge.OnSpanStart(span)
	span.Status = nodeflow.StatusCancelled
	bridge.OnSpanEnd(span)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "Error", ended[0].Status().Code.String())
}

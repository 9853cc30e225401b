package nodeflow

import (
	"context"
	"time"

	"github.com/nodeflow/nodeflow/internal/obslog"
)

// RunMetrics receives scheduler/policy observations during a Run, without
// nodeflow itself depending on any metrics backend. metrics.Prometheus
// satisfies this interface.
type RunMetrics interface {
	RecordStepLatency(traceID, nodeID string, latency time.Duration, status string)
	IncrementRetries(traceID, nodeID string)
	UpdateQueueDepth(traceID string, depth int)
	IncrementPolicyOutcome(traceID, nodeID, action string)
	IncrementCancellations(traceID string)
}

type nopMetrics struct{}

func (nopMetrics) RecordStepLatency(string, string, time.Duration, string) {}
func (nopMetrics) IncrementRetries(string, string)                         {}
func (nopMetrics) UpdateQueueDepth(string, int)                            {}
func (nopMetrics) IncrementPolicyOutcome(string, string, string)           {}
func (nopMetrics) IncrementCancellations(string)                          {}

// RunOption configures a single Run invocation.
type RunOption func(*runOptions)

type runOptions struct {
	tracer      Tracer
	serviceName string
	metrics     RunMetrics
	logger      *obslog.Logger
}

// WithTracer attaches a tracer backend to this run. Without one, spans and
// events are discarded.
func WithTracer(t Tracer) RunOption {
	return func(o *runOptions) { o.tracer = t }
}

// WithServiceName sets the service_name field stamped on every span.
func WithServiceName(name string) RunOption {
	return func(o *runOptions) { o.serviceName = name }
}

// WithLogger attaches a process logger for flow-level lifecycle events
// (start, node failure, cancellation). Without one, a silent default
// discards these — spans/events remain the primary audit trail.
func WithLogger(l *obslog.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// WithMetrics attaches a metrics sink to this run. Without one, observations
// are discarded.
func WithMetrics(m RunMetrics) RunOption {
	return func(o *runOptions) { o.metrics = m }
}

// Run executes g starting at its entry node with userInput as the seed
// payload, draining the ready queue to completion (or until ctx is
// cancelled). The supplied flowCtx is mutated in place; on success it is
// also returned. On failure, the original error is returned alongside a
// FailureSummary built from the context's failed_* shortcuts.
//
// Grounded on the original's Flow.run/_resolve_successors, generalized to
// single-threaded cooperative execution plus policy-engine enforcement of
// retry/timeout/on-error, which the original never actually wired in (see
// DESIGN.md).
func Run(ctx context.Context, g *Graph, flowCtx Context, userInput any, opts ...RunOption) (Context, *FailureSummary, error) {
	o := runOptions{tracer: NopTracer{}, serviceName: "nodeflow", metrics: nopMetrics{}}
	for _, fn := range opts {
		fn(&o)
	}

	flowCtx = ensureContext(flowCtx)
	payloads := flowCtx.payloads()
	if _, ok := payloads[g.Entry]; !ok {
		payloads[g.Entry] = userInput
	}

	if o.logger != nil {
		o.logger.Info("flow starting", map[string]any{"entry": g.Entry})
	}

	spans := NewSpanStack(o.tracer, o.serviceName)
	flowSpanID := spans.StartSpan(SpanKindFlow, "flow", map[string]any{"entry": g.Entry})

	sched := newScheduler(g, spans)
	sched.enqueue(g.Entry)

	for {
		if err := ctx.Err(); err != nil {
			cancelErr := s_cancelRemaining(sched, flowCtx, spans)
			o.metrics.IncrementCancellations(spans.TraceID())
			if o.logger != nil {
				o.logger.Warn("flow cancelled", map[string]any{"trace_id": spans.TraceID()})
			}
			spans.EndSpan(flowSpanID, StatusCancelled, err.Error(), nil)
			return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, g.Policy, userInput), cancelErr
		}

		o.metrics.UpdateQueueDepth(spans.TraceID(), len(sched.ready))
		nid, ok := sched.dequeue()
		if !ok {
			break
		}
		if _, done := sched.completed[nid]; done {
			continue
		}
		if sched.remaining[nid] > 0 {
			sched.enqueue(nid)
			continue
		}

		node := g.Nodes[nid]
		pol, err := sched.effectivePolicy(nid)
		if err != nil {
			spans.EndSpan(flowSpanID, StatusError, err.Error(), nil)
			return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, g.Policy, userInput), err
		}

		inputPayload := payloads[nid]
		cfg := g.NodeConfig[nid]
		resolvedPayload, err := ResolveInputs(flowCtx, inputsBinding(cfg.Context.Inputs), inputPayload)
		if err != nil {
			spans.EndSpan(flowSpanID, StatusError, err.Error(), nil)
			return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, g.Policy, userInput), err
		}

		flowCtx.appendStep(StepRecord{NodeID: nid, Status: StatusStart})
		// node_start is emitted by executeWithPolicy itself, once its node
		// span is current, so the event attaches to the node's own span
		// rather than the flow span that is current here.

		routingBefore := len(flowCtx.routingMap()[nid])
		attemptStart := time.Now()
		result, attempts, execErr := executeWithPolicy(ctx, node, nid, resolvedPayload, flowCtx, pol, spans)
		for i := 1; i < attempts; i++ {
			o.metrics.IncrementRetries(spans.TraceID(), nid)
		}

		if execErr != nil {
			status := "error"
			if fe, ok := execErr.(*FlowError); ok && fe.Kind == KindTimeout {
				status = "timeout"
			}
			o.metrics.RecordStepLatency(spans.TraceID(), nid, time.Since(attemptStart), status)
			recordNodeError(flowCtx, nid, execErr)
			outcome, propagate := applyOnError(pol, execErr)
			if propagate {
				o.metrics.IncrementPolicyOutcome(spans.TraceID(), nid, "stop")
				if o.logger != nil {
					o.logger.Error("node failed", map[string]any{"node_id": nid, "trace_id": spans.TraceID(), "error": execErr.Error()})
				}
				flowCtx.appendStep(StepRecord{NodeID: nid, Status: StatusFailed, Message: execErr.Error()})
				spans.EmitEvent("flow_error", LevelError, execErr.Error(), map[string]any{"node_id": nid})
				spans.EndSpan(flowSpanID, StatusError, execErr.Error(), nil)
				return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, pol, userInput), execErr
			}

			o.metrics.IncrementPolicyOutcome(spans.TraceID(), nid, outcome.status)
			flowCtx.appendStep(StepRecord{NodeID: nid, Status: outcome.status, Message: execErr.Error()})
			payloads[nid] = nil
			successors, serr := sched.resolveSuccessors(nid, nil, outcome.gotoTarget)
			if serr != nil {
				spans.EndSpan(flowSpanID, StatusError, serr.Error(), nil)
				return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, pol, userInput), serr
			}
			sched.completed[nid] = struct{}{}
			s_fanOut(sched, flowCtx, nid, nil, successors)
			continue
		}

		o.metrics.RecordStepLatency(spans.TraceID(), nid, time.Since(attemptStart), "success")

		var routing *Routing
		if result.IsRouting {
			routing = result.Routing
			flowCtx.RecordRouting(nid, *routing)
		} else if after := flowCtx.routingMap()[nid]; len(after) > routingBefore {
			routing = &after[len(after)-1]
		}

		output := result.Payload
		if err := ResolveOutputs(flowCtx, cfg.Context.Outputs, output); err != nil {
			spans.EndSpan(flowSpanID, StatusError, err.Error(), nil)
			return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, pol, userInput), err
		}
		payloads[nid] = output
		flowCtx.appendStep(StepRecord{NodeID: nid, Status: StatusSuccess})

		successors, serr := sched.resolveSuccessors(nid, routing, "")
		if serr != nil {
			spans.EndSpan(flowSpanID, StatusError, serr.Error(), nil)
			return flowCtx, NewFailureSummaryPtr(spans.TraceID(), flowCtx, pol, userInput), serr
		}
		sched.completed[nid] = struct{}{}
		s_fanOut(sched, flowCtx, nid, output, successors)
	}

	spans.EndSpan(flowSpanID, StatusOK, "", nil)
	return flowCtx, nil, nil
}

// s_fanOut decrements remaining-parent counts for every successor of nid,
// stashes join inputs in deterministic parent order, and enqueues any
// successor whose dependencies are now satisfied. Grounded on spec.md
// section 4.5 step 6.
func s_fanOut(sched *scheduler, flowCtx Context, nid string, output any, successors map[string]struct{}) {
	payloads := flowCtx.payloads()
	for _, target := range sortedIDs(successors) {
		if sched.remaining[target] > 0 {
			sched.remaining[target]--
		}

		parentCount := sched.graph.ParentCnt[target]
		if parentCount > 1 {
			buf := sched.joinBuffers[target]
			if buf == nil {
				buf = map[string]any{}
				sched.joinBuffers[target] = buf
			}
			buf[nid] = output

			joins := flowCtx.joinsMap()
			live := joins[target]
			if live == nil {
				live = map[string]any{}
			}
			live[nid] = output
			joins[target] = live

			if len(buf) == parentCount {
				aggregated := make(map[string]any, len(buf))
				for _, parent := range sched.graph.ParentOrd[target] {
					if v, ok := buf[parent]; ok {
						aggregated[parent] = v
					}
				}
				payloads[target] = aggregated
				// joins[target] keeps its own snapshot, deep-copied so the
				// target node mutating its (map-shaped) input in place can
				// never corrupt the recorded join aggregate.
				if snap, ok := deepCopyValue(aggregated).(map[string]any); ok {
					joins[target] = snap
				} else {
					joins[target] = aggregated
				}
				delete(sched.joinBuffers, target)
			}
		} else {
			payloads[target] = output
		}

		if sched.remaining[target] == 0 {
			sched.enqueue(target)
		}
	}
}

// s_cancelRemaining closes every open span with CANCELLED status and appends
// a failed "cancelled" step for each node still waiting in the ready queue.
// Nodes that were never enqueued get no step record.
func s_cancelRemaining(sched *scheduler, flowCtx Context, spans *SpanStack) error {
	for _, nid := range append([]string(nil), sched.ready...) {
		if _, done := sched.completed[nid]; done {
			continue
		}
		flowCtx.appendStep(StepRecord{NodeID: nid, Status: StatusFailed, Message: "cancelled"})
	}
	spans.Close(StatusCancelled)
	return NewCancelledError("")
}

// NewFailureSummaryPtr is a small convenience over NewFailureSummary that
// returns a pointer, matching Run's (ctx, *FailureSummary, error) shape.
func NewFailureSummaryPtr(traceID string, ctx Context, pol Policy, entryPayload any) *FailureSummary {
	fs := NewFailureSummary(traceID, ctx, pol, entryPayload)
	return &fs
}

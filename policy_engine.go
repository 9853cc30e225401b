package nodeflow

import (
	"context"
	"fmt"
	"time"
)

// attemptOutcome is the result of one Execute attempt under policy
// enforcement: either a NodeResult, or an error classified as retryable.
type attemptOutcome struct {
	result NodeResult
	err    error
}

// executeWithPolicy runs node.Execute under pol's timeout and retry rules.
// Returns the final NodeResult, the number of attempts made, and a non-nil
// error only once retries are exhausted. Grounded on spec.md section 4.4;
// the original Python policy.py never actually wires retry into its
// executor, so this control flow is new, written in the teacher's idiom
// (timeout.go's context.WithTimeout + deadline check, scheduler bookkeeping
// of attempt counts).
func executeWithPolicy(ctx context.Context, node Node, nodeID string, payload any, flowCtx Context, pol Policy, tracer *SpanStack) (NodeResult, int, error) {
	attempts := 0
	// spec.md 4.4: "attempts cap includes the first try"; max_attempts=0
	// disables retry, meaning exactly one try.
	maxAttempts := pol.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var lastResult NodeResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		spanID := tracer.StartSpan(SpanKindNode, nodeID, map[string]any{"attempt": attempt})
		if attempt == 1 {
			// Emitted here, not by the caller, so it attaches to this node's
			// own span rather than the flow span that was current beforehand.
			tracer.EmitEvent("node_start", LevelInfo, "", map[string]any{"node_id": nodeID})
		}
		outcome := runAttempt(ctx, node, payload, flowCtx, pol.Timeout, nodeID)
		if outcome.err == nil {
			tracer.EndSpan(spanID, StatusOK, "", nil)
			return outcome.result, attempts, nil
		}
		tracer.EndSpan(spanID, StatusError, outcome.err.Error(), nil)
		lastErr = outcome.err
		lastResult = outcome.result

		if attempt == maxAttempts {
			break
		}
		delay := backoffDelay(pol.Retry, attempt)
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return lastResult, attempts, lastErr
}

// backoffDelay computes the sleep before the next attempt, per spec.md
// section 4.4: fixed delay, or delay*2^(attempt-1) for exponential.
func backoffDelay(retry Retry, attempt int) time.Duration {
	if retry.Mode != RetryExponential {
		return retry.Delay
	}
	multiplier := 1 << uint(attempt-1)
	return retry.Delay * time.Duration(multiplier)
}

// runAttempt executes node.Execute once, enforcing pol's per-attempt
// timeout by racing the call against a deadline on a goroutine — Execute
// may legitimately block (I/O), so a context deadline alone cannot recover
// control from it; the scheduler abandons (does not await) a timed-out
// goroutine and returns a TimeoutError instead.
//
// A timeout-guarded attempt never runs against the live flowCtx: the
// abandoned goroutine could otherwise keep writing to it after the
// scheduler has moved on to record the failure and schedule the next node,
// racing with the single-writer discipline spec.md section 5 requires and
// panicking on a concurrent map write. It runs against an isolated clone
// instead, folded back only when the attempt finishes inside budget.
func runAttempt(ctx context.Context, node Node, payload any, flowCtx Context, timeout time.Duration, nodeID string) attemptOutcome {
	if timeout <= 0 {
		result, err := node.Execute(ctx, payload, flowCtx)
		if err != nil {
			return attemptOutcome{err: NewNodeExecutionError(nodeID, err)}
		}
		return attemptOutcome{result: result}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snapshot := cloneContext(flowCtx)

	type done struct {
		result NodeResult
		err    error
	}
	ch := make(chan done, 1)
	go func() {
		result, err := node.Execute(attemptCtx, payload, snapshot)
		ch <- done{result: result, err: err}
	}()

	select {
	case d := <-ch:
		mergeContext(flowCtx, snapshot)
		if d.err != nil {
			return attemptOutcome{err: NewNodeExecutionError(nodeID, d.err)}
		}
		return attemptOutcome{result: d.result}
	case <-attemptCtx.Done():
		// snapshot is left for the abandoned goroutine; flowCtx is never
		// touched again on this attempt's behalf.
		return attemptOutcome{err: NewTimeoutError(nodeID, fmt.Sprintf("exceeded timeout of %s", timeout))}
	}
}

// onErrorOutcome is what the scheduler does after on-error mapping decides
// how a terminal failure resolves.
type onErrorOutcome struct {
	status     string // StatusContinue or StatusGoto ("stop" propagates instead)
	gotoTarget string
}

// applyOnError maps a terminal (post-retry) failure to stop/continue/goto,
// per spec.md section 4.4. Returns (outcome, propagate) where propagate
// true means the caller must surface err from run().
func applyOnError(pol Policy, err error) (onErrorOutcome, bool) {
	if fe, ok := err.(*FlowError); ok && fe.Kind == KindRouting {
		return onErrorOutcome{}, true // RoutingError always propagates
	}
	switch pol.OnError.Action {
	case ActionContinue:
		return onErrorOutcome{status: StatusContinue}, false
	case ActionGoto:
		return onErrorOutcome{status: StatusGoto, gotoTarget: pol.OnError.Target}, false
	default:
		return onErrorOutcome{}, true
	}
}

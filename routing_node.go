package nodeflow

import "context"

// RoutingFunc decides the Routing for a RoutingNode, given its resolved
// input payload and the live flow context.
type RoutingFunc func(ctx context.Context, payload any, flowCtx Context) (Routing, error)

// RoutingNode always produces a Routing value rather than a payload; it
// must target only declared successors, enforced by the scheduler at
// successor-resolution time (scheduler.go), not here — this node has no
// visibility into the graph's adjacency. Like FunctionNode, it receives an
// already-resolved payload; inputs-binding resolution is owned by Run.
type RoutingNode struct {
	baseNode
	Fn RoutingFunc
}

func NewRoutingNode(fn RoutingFunc) *RoutingNode {
	return &RoutingNode{Fn: fn}
}

func (n *RoutingNode) Execute(ctx context.Context, payload any, flowCtx Context) (NodeResult, error) {
	if n.Fn == nil {
		return NodeResult{}, NewConfigurationError("MISSING_ROUTER", "routing node \""+n.id+"\" has no routing function bound")
	}
	routing, err := n.Fn(ctx, payload, flowCtx)
	if err != nil {
		return NodeResult{}, err
	}
	return RoutingResult(routing), nil
}

// CustomRoutingNode is a RoutingNode variant that also records its own
// payload alongside the routing decision (context.payloads[node_id]),
// for routers whose decision logic itself produces a reportable value —
// e.g. the confidence-router scenario in spec.md section 8.
type CustomRoutingNode struct {
	RoutingNode
	PayloadFn func(routing Routing) any
}

func NewCustomRoutingNode(fn RoutingFunc, payloadFn func(Routing) any) *CustomRoutingNode {
	return &CustomRoutingNode{RoutingNode: RoutingNode{Fn: fn}, PayloadFn: payloadFn}
}

func (n *CustomRoutingNode) Execute(ctx context.Context, payload any, flowCtx Context) (NodeResult, error) {
	result, err := n.RoutingNode.Execute(ctx, payload, flowCtx)
	if err != nil {
		return NodeResult{}, err
	}
	if n.PayloadFn != nil && result.Routing != nil {
		result.Payload = n.PayloadFn(*result.Routing)
	}
	return result, nil
}

package nodeflow

import "context"

// Callable is the signature every FunctionNode invokes: the already-resolved
// input payload plus a scoped accessor over the live flow context. Grounded
// on the original's `callable(context, payload)` convention.
type Callable func(ctx context.Context, payload any, flowCtx Context) (any, error)

// FunctionNode invokes its callable with the payload the scheduler already
// resolved from its inputs binding (spec.md section 4.5 step 3); it does
// not resolve inputs or outputs itself — that is owned centrally by Run,
// mirroring the original's Flow.run resolving input_path/output_path around
// a plain `node.run(user_input, context)` call. It is the "plain function
// node" variant of spec.md section 4.2.
type FunctionNode struct {
	baseNode
	Fn Callable
}

func NewFunctionNode(fn Callable) *FunctionNode {
	return &FunctionNode{Fn: fn}
}

func (n *FunctionNode) Execute(ctx context.Context, payload any, flowCtx Context) (NodeResult, error) {
	if n.Fn == nil {
		return NodeResult{}, NewConfigurationError("MISSING_CALLABLE", "function node \""+n.id+"\" has no callable bound")
	}
	out, err := n.Fn(ctx, payload, flowCtx)
	if err != nil {
		return NodeResult{}, err
	}
	if _, isRouting := out.(Routing); isRouting {
		return NodeResult{}, NewConfigurationError("ROUTING_FROM_FUNCTION",
			"node \""+n.id+"\" returned a Routing from a function position")
	}
	return PayloadResult(out), nil
}

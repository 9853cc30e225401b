package nodeflow

import "context"

// Node is a unit of work bound to an identifier within a flow. Nodes are
// created once and reused across invocations; all per-run state lives in the
// Context passed to Execute, never on the node itself.
//
// A function node whose callable returns a Routing value is a configuration
// error, reported by FunctionNode.Execute when the callable returns.
type Node interface {
	// ID returns the node's bound identifier, or "" before Bind is called.
	ID() string

	// Bind assigns the node's identity. Idempotent rebinding to the same id
	// is permitted; rebinding to a different id fails with a
	// ConfigurationError.
	Bind(nodeID string) error

	// Execute is the only runtime entry point the scheduler calls. payload
	// is the already-resolved input value; flowCtx is the flow context.
	// A node returns either a produced payload (IsRouting false) or a
	// Routing decision (IsRouting true); a routing result may also carry a
	// Payload (LoopNode, CustomRoutingNode), which the scheduler records as
	// the node's output.
	Execute(ctx context.Context, payload any, flowCtx Context) (NodeResult, error)
}

// NodeResult is what Execute returns, discriminated by IsRouting. Routing is
// set only when IsRouting is true; Payload is the node's output in either
// case.
type NodeResult struct {
	Payload   any
	Routing   *Routing
	IsRouting bool
}

// PayloadResult wraps a plain value result.
func PayloadResult(v any) NodeResult {
	return NodeResult{Payload: v}
}

// RoutingResult wraps a routing decision result.
func RoutingResult(r Routing) NodeResult {
	return NodeResult{Routing: &r, IsRouting: true}
}

// baseNode gives every concrete node variant shared bind/id bookkeeping, the
// way the original's Node.bind/node_id pair does for every Python node
// subclass.
type baseNode struct {
	id string
}

func (b *baseNode) ID() string { return b.id }

func (b *baseNode) Bind(nodeID string) error {
	if b.id == "" {
		b.id = nodeID
		return nil
	}
	if b.id == nodeID {
		return nil
	}
	return NewConfigurationError("REBIND", "node already bound to \""+b.id+"\", cannot rebind to \""+nodeID+"\"")
}

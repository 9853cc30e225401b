package nodeflow

import "context"

// loopSlotKey is the reserved per-node context slot LoopNode uses to persist
// its cursor across re-entries. Keyed by node id so multiple independent
// loops in one flow never collide.
func loopSlotKey(nodeID string) string { return "__loop__" + nodeID }

type loopSlot struct {
	Cursor int
	Items  []any
}

// LoopNode iterates a sequence by re-entering itself via a self-edge. Each
// execution emits one {item, index} payload; when the items binding is first
// resolved it is snapshotted into the per-node slot so later re-entries see
// a stable sequence even if the source path in context changes mid-loop.
//
// Routing: while items remain, selects BodyRoute (normally a self-edge back
// to this node after the body completes); once exhausted, selects LoopRoute,
// or terminates the branch if LoopRoute is empty.
type LoopNode struct {
	baseNode
	ItemsBinding any // resolved once, on first entry
	BodyRoute    string
	LoopRoute    string
}

func NewLoopNode(itemsBinding any, bodyRoute, loopRoute string) *LoopNode {
	return &LoopNode{ItemsBinding: itemsBinding, BodyRoute: bodyRoute, LoopRoute: loopRoute}
}

func (n *LoopNode) Execute(ctx context.Context, payload any, flowCtx Context) (NodeResult, error) {
	key := loopSlotKey(n.id)
	slots := flowCtx.payloads()
	var slot loopSlot
	raw, ok := slots[key]
	if ok {
		slot, ok = raw.(loopSlot)
	}
	if !ok {
		items, err := ResolveInputs(flowCtx, n.ItemsBinding, nil)
		if err != nil {
			return NodeResult{}, err
		}
		seq, _ := asSlice(items)
		slot = loopSlot{Cursor: 0, Items: seq}
	}

	if slot.Cursor >= len(slot.Items) {
		delete(slots, key)
		if n.LoopRoute == "" {
			return RoutingResult(StopRouting("loop exhausted")), nil
		}
		return RoutingResult(GotoRouting(n.LoopRoute)), nil
	}

	item := slot.Items[slot.Cursor]
	index := slot.Cursor
	slot.Cursor++
	slots[key] = slot

	out := map[string]any{"item": item, "index": index}
	result := RoutingResult(GotoRouting(n.BodyRoute))
	result.Payload = out
	return result, nil
}

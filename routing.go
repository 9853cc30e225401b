package nodeflow

// Routing is a value a node produces to select which of its declared
// successors run next. It is written into context["routing"][node_id] so the
// decision is auditable and replayable rather than living only in control
// flow. See spec.md section 3 and the Design Notes on routing-as-data.
type Routing struct {
	// Target is one of: nil (stop this branch), string (single successor),
	// or []string (fan-out to multiple successors).
	Target any

	Confidence *float64
	Reason     string
}

// StopRouting terminates the branch this node sits on: no successor runs.
func StopRouting(reason string) Routing {
	return Routing{Target: nil, Reason: reason}
}

// GotoRouting selects a single declared successor.
func GotoRouting(nodeID string) Routing {
	return Routing{Target: nodeID}
}

// FanOutRouting selects multiple declared successors.
func FanOutRouting(nodeIDs ...string) Routing {
	return Routing{Target: append([]string(nil), nodeIDs...)}
}

// targets resolves Target into the set of node ids this Routing selects.
// A nil Target yields an empty, non-nil set (explicit "stop"); distinguish
// "no routing at all" from "routing present but stopped" at the call site.
func (r Routing) targets() map[string]struct{} {
	out := map[string]struct{}{}
	switch t := r.Target.(type) {
	case nil:
		return out
	case string:
		out[t] = struct{}{}
	case []string:
		for _, id := range t {
			out[id] = struct{}{}
		}
	}
	return out
}

package nodeflow

import (
	"sort"

	"github.com/nodeflow/nodeflow/config"
)

// scheduler holds the per-invocation FIFO execution state, grounded on the
// original's Flow.run local variables (ready/remaining/completed/in_queue/
// join_buffers) and generalized into single-threaded cooperative draining,
// per spec.md section 5 (parallel execution is permitted but not required;
// sequential satisfies every ordering invariant with far less complexity).
type scheduler struct {
	graph       *Graph
	ready       []string
	remaining   map[string]int
	completed   map[string]struct{}
	inQueue     map[string]struct{}
	joinBuffers map[string]map[string]any
	spans       *SpanStack
}

func newScheduler(g *Graph, spans *SpanStack) *scheduler {
	remaining := make(map[string]int, len(g.ParentCnt))
	for id, n := range g.ParentCnt {
		remaining[id] = n
	}
	return &scheduler{
		graph:       g,
		remaining:   remaining,
		completed:   map[string]struct{}{},
		inQueue:     map[string]struct{}{},
		joinBuffers: map[string]map[string]any{},
		spans:       spans,
	}
}

func (s *scheduler) enqueue(id string) {
	if _, done := s.completed[id]; done {
		return
	}
	if _, queued := s.inQueue[id]; queued {
		return
	}
	s.ready = append(s.ready, id)
	s.inQueue[id] = struct{}{}
}

func (s *scheduler) dequeue() (string, bool) {
	if len(s.ready) == 0 {
		return "", false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	delete(s.inQueue, id)
	return id, true
}

// effectivePolicy merges the graph's global policy with nid's per-node
// override, per spec.md section 4.4.
func (s *scheduler) effectivePolicy(nid string) (Policy, error) {
	cfg := s.graph.NodeConfig[nid]
	return MergePolicy(s.graph.Policy, cfg.Policy)
}

// resolveSuccessors implements spec.md section 4.5.1's resolution order:
// policy-forced goto, then an explicit stop/list/single Routing, then a
// fixed next_route setting, then broadcast to every declared successor,
// finally falling back to default_route if nothing was selected.
// forcedGoto is non-empty only when the policy engine signaled goto after a
// terminal failure; routing is the Routing this node's execution produced,
// or nil if none.
func (s *scheduler) resolveSuccessors(nid string, routing *Routing, forcedGoto string) (map[string]struct{}, error) {
	allowed := s.graph.Adjacency[nid]
	cfg := s.graph.NodeConfig[nid]

	var selected map[string]struct{}
	switch {
	case forcedGoto != "":
		if _, ok := s.graph.Nodes[forcedGoto]; !ok {
			return nil, NewConfigurationError("BAD_GOTO", "on_error.goto target \""+forcedGoto+"\" does not exist")
		}
		selected = map[string]struct{}{forcedGoto: {}}
	case routing != nil:
		selected = routing.targets() // empty set for target==nil, i.e. stop
	default:
		if nextRoute := nextRouteSetting(cfg); nextRoute != "" {
			selected = map[string]struct{}{nextRoute: {}}
		} else {
			selected = cloneSet(allowed)
		}
	}

	if len(selected) == 0 && cfg.DefaultRoute != "" {
		selected = map[string]struct{}{cfg.DefaultRoute: {}}
	}

	for id := range selected {
		if id == forcedGoto {
			continue
		}
		if _, ok := allowed[id]; !ok {
			return nil, NewRoutingError(nid, "attempted to route to undeclared successor \""+id+"\"")
		}
	}
	return selected, nil
}

// nextRouteSetting reads a node's fixed next_route setting, if configured.
// Carried as a typed setting value rather than a dedicated NodeConfig
// field, since only some node kinds honor it.
func nextRouteSetting(cfg config.NodeConfig) string {
	sv, ok := cfg.Setting["next_route"]
	if !ok {
		return ""
	}
	s, _ := sv.Value.(string)
	return s
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// sortedIDs returns a map of node ids in sorted order; Run uses it to fan out
// to successors in a deterministic order.
func sortedIDs(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

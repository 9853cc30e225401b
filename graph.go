package nodeflow

import (
	"sort"

	"github.com/nodeflow/nodeflow/config"
)

// Graph is a compiled, validated flow: nodes bound to identifiers plus the
// adjacency computed from its edge expressions. Grounded on the original's
// Flow.__init__.
type Graph struct {
	Nodes      map[string]Node
	NodeConfig map[string]config.NodeConfig
	Entry      string
	Adjacency  map[string]map[string]struct{}
	Reverse    map[string]map[string]struct{}
	ParentCnt  map[string]int
	ParentOrd  map[string][]string
	Policy     Policy // normalized global policy
}

// CompileOption configures CompileGraph.
type CompileOption func(*compileOptions)

type compileOptions struct {
	registry  *Registry
	callables *CallableRegistry
}

// WithRegistry overrides the node-type registry used to instantiate nodes.
func WithRegistry(r *Registry) CompileOption {
	return func(o *compileOptions) { o.registry = r }
}

// WithCallables overrides the callable registry used to resolve
// context.inputs.callable references.
func WithCallables(c *CallableRegistry) CompileOption {
	return func(o *compileOptions) { o.callables = c }
}

// CompileGraph builds a Graph from a parsed FlowConfig: instantiates nodes
// via the registry, parses edge expressions, computes
// adjacency/reverse/parent_counts/parent_order, and validates the result.
// Grounded on the original's Flow.__init__ plus spec.md section 4.3.
func CompileGraph(cfg config.FlowConfig, opts ...CompileOption) (*Graph, error) {
	o := compileOptions{registry: DefaultRegistry, callables: DefaultCallables}
	for _, fn := range opts {
		fn(&o)
	}

	if cfg.Entry == "" {
		return nil, NewConfigurationError("NO_ENTRY", "flow configuration has no entry node")
	}
	if _, ok := cfg.Nodes[cfg.Entry]; !ok {
		return nil, NewConfigurationError("BAD_ENTRY", "entry node \""+cfg.Entry+"\" not found in nodes")
	}

	nodes := make(map[string]Node, len(cfg.Nodes))
	nodeCfgs := make(map[string]config.NodeConfig, len(cfg.Nodes))
	ids := make([]string, 0, len(cfg.Nodes))
	for id := range cfg.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic instantiation order

	globalPolicy, err := MergePolicy(DefaultPolicy(), cfg.Policy)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		nc := cfg.Nodes[id]
		nc.ID = id
		node, err := o.registry.Build(nc.Type, nc, o.callables)
		if err != nil {
			return nil, err
		}
		if err := node.Bind(id); err != nil {
			return nil, err
		}
		nodes[id] = node
		nodeCfgs[id] = nc
	}

	edges, err := ParseEdges(cfg.Edges)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string]map[string]struct{}, len(nodes))
	reverse := make(map[string]map[string]struct{}, len(nodes))
	for id := range nodes {
		adjacency[id] = map[string]struct{}{}
		reverse[id] = map[string]struct{}{}
	}
	for _, e := range edges {
		if _, ok := nodes[e.From]; !ok {
			return nil, NewConfigurationError("BAD_EDGE", "edge references unknown source node \""+e.From+"\"")
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, NewConfigurationError("BAD_EDGE", "edge references unknown target node \""+e.To+"\"")
		}
		adjacency[e.From][e.To] = struct{}{}
		reverse[e.To][e.From] = struct{}{}
	}

	parentCnt := make(map[string]int, len(nodes))
	parentOrd := make(map[string][]string, len(nodes))
	for id, parents := range reverse {
		parentCnt[id] = len(parents)
		ordered := make([]string, 0, len(parents))
		for p := range parents {
			ordered = append(ordered, p)
		}
		sort.Strings(ordered)
		parentOrd[id] = ordered
	}

	g := &Graph{
		Nodes:      nodes,
		NodeConfig: nodeCfgs,
		Entry:      cfg.Entry,
		Adjacency:  adjacency,
		Reverse:    reverse,
		ParentCnt:  parentCnt,
		ParentOrd:  parentOrd,
		Policy:     globalPolicy,
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validate checks default_route references and rejects cycles other than
// self-edges (required by LoopNode).
func (g *Graph) validate() error {
	for id, nc := range g.NodeConfig {
		if nc.DefaultRoute == "" {
			continue
		}
		if _, ok := g.Adjacency[id][nc.DefaultRoute]; !ok {
			return NewConfigurationError("BAD_DEFAULT_ROUTE",
				"node \""+id+"\" declares default_route \""+nc.DefaultRoute+"\" which is not a declared successor")
		}
	}
	return g.checkAcyclic()
}

// checkAcyclic runs a DFS cycle check that tolerates self-edges (A -> A)
// but rejects every other cycle, per spec.md section 4.3.
func (g *Graph) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		targets := make([]string, 0, len(g.Adjacency[id]))
		for t := range g.Adjacency[id] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			if t == id {
				continue // self-edge, permitted
			}
			switch color[t] {
			case white:
				if err := visit(t); err != nil {
					return err
				}
			case gray:
				return NewConfigurationError("CYCLE", "flow contains a cycle involving node \""+t+"\"")
			}
		}
		color[id] = black
		return nil
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

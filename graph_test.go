package nodeflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/config"
)

// noopRegistry builds a fresh Registry/CallableRegistry pair for compiling
// test graphs without touching the process-wide defaults.
func noopRegistry() (*Registry, *CallableRegistry) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("noop", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return payload, nil
	})
	r := NewRegistry()
	r.Register("function", func(cfg config.NodeConfig, callables *CallableRegistry) (Node, error) {
		fn, err := callables.Callable(cfg.Context.Inputs.Callable)
		if err != nil {
			return nil, err
		}
		return NewFunctionNode(fn), nil
	})
	return r, callables
}

func simpleNodeConfig() config.NodeConfig {
	return config.NodeConfig{
		Type:    "function",
		Context: config.NodeContextConfig{Inputs: config.NodeInputsConfig{Callable: "noop"}},
	}
}

func TestCompileGraph_Linear(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": simpleNodeConfig(),
			"b": simpleNodeConfig(),
		},
		Edges: []string{"a >> b"},
	}

	g, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	_, ok := g.Adjacency["a"]["b"]
	require.True(t, ok)
	require.Equal(t, 1, g.ParentCnt["b"])
	require.Equal(t, []string{"a"}, g.ParentOrd["b"])
}

func TestCompileGraph_MissingEntry(t *testing.T) {
	r, callables := noopRegistry()
	_, err := CompileGraph(config.FlowConfig{}, WithRegistry(r), WithCallables(callables))
	require.Error(t, err)
}

func TestCompileGraph_EntryNotInNodes(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{Entry: "missing", Nodes: map[string]config.NodeConfig{"a": simpleNodeConfig()}}
	_, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.Error(t, err)
}

func TestCompileGraph_EdgeReferencesUnknownNode(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{"a": simpleNodeConfig()},
		Edges: []string{"a >> ghost"},
	}
	_, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.Error(t, err)
}

func TestCompileGraph_RejectsCycle(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": simpleNodeConfig(),
			"b": simpleNodeConfig(),
		},
		Edges: []string{"a >> b", "b >> a"},
	}
	_, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.Error(t, err)
}

func TestCompileGraph_PermitsSelfEdge(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{"a": simpleNodeConfig()},
		Edges: []string{"a >> a"},
	}
	_, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.NoError(t, err)
}

func TestCompileGraph_ValidatesDefaultRoute(t *testing.T) {
	r, callables := noopRegistry()
	nc := simpleNodeConfig()
	nc.DefaultRoute = "ghost"
	cfg := config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": nc,
			"b": simpleNodeConfig(),
		},
		Edges: []string{"a >> b"},
	}
	_, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.Error(t, err)
}

func TestCompileGraph_JoinParentOrderIsSortedById(t *testing.T) {
	r, callables := noopRegistry()
	cfg := config.FlowConfig{
		Entry: "start",
		Nodes: map[string]config.NodeConfig{
			"start": simpleNodeConfig(),
			"z":     simpleNodeConfig(),
			"a":     simpleNodeConfig(),
			"join":  simpleNodeConfig(),
		},
		Edges: []string{"start >> (z | a)", "(z & a) >> join"},
	}
	g, err := CompileGraph(cfg, WithRegistry(r), WithCallables(callables))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "z"}, g.ParentOrd["join"])
	require.Equal(t, 2, g.ParentCnt["join"])
}

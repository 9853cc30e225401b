package nodeflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/config"
)

func buildGraph(t *testing.T, cfg config.FlowConfig, callables *CallableRegistry) *Graph {
	t.Helper()
	g, err := CompileGraph(cfg, WithCallables(callables))
	require.NoError(t, err)
	return g
}

func functionNodeConfig(callable string) config.NodeConfig {
	return config.NodeConfig{
		Type:    "function",
		Context: config.NodeContextConfig{Inputs: config.NodeInputsConfig{Callable: callable}},
	}
}

func routingNodeConfig(callable string) config.NodeConfig {
	return config.NodeConfig{
		Type:    "routing",
		Context: config.NodeContextConfig{Inputs: config.NodeInputsConfig{Callable: callable}},
	}
}

func TestRun_LinearFlowSucceeds(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("double", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return payload.(int) * 2, nil
	})
	callables.RegisterCallable("increment", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return payload.(int) + 2, nil
	})
	g := buildGraph(t, config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": functionNodeConfig("double"),
			"b": functionNodeConfig("increment"),
		},
		Edges: []string{"a >> b"},
	}, callables)

	finalCtx, failure, err := Run(context.Background(), g, NewContext(), 5)
	require.NoError(t, err)
	require.Nil(t, failure)
	require.Equal(t, 12, finalCtx.Payload("b"))

	steps := finalCtx.Steps()
	require.Len(t, steps, 4) // start+success for a, start+success for b
	require.Equal(t, "a", steps[0].NodeID)
	require.Equal(t, StatusStart, steps[0].Status)
	require.Equal(t, StatusSuccess, steps[1].Status)
}

func TestRun_FanOutFanInJoinAggregatesByParentOrder(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("passthrough", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return payload, nil
	})
	callables.RegisterCallable("tagB", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return "B", nil
	})
	callables.RegisterCallable("tagC", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return "C", nil
	})
	var joined map[string]any
	callables.RegisterCallable("join", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		joined, _ = payload.(map[string]any)
		return "joined", nil
	})

	g := buildGraph(t, config.FlowConfig{
		Entry: "start",
		Nodes: map[string]config.NodeConfig{
			"start": functionNodeConfig("passthrough"),
			"b":     functionNodeConfig("tagB"),
			"c":     functionNodeConfig("tagC"),
			"join":  functionNodeConfig("join"),
		},
		Edges: []string{"start >> (b | c)", "(b & c) >> join"},
	}, callables)

	finalCtx, failure, err := Run(context.Background(), g, NewContext(), "seed")
	require.NoError(t, err)
	require.Nil(t, failure)
	require.Equal(t, "joined", finalCtx.Payload("join"))
	require.Equal(t, map[string]any{"b": "B", "c": "C"}, joined)
}

func TestRun_RoutingDecisionSelectsSingleSuccessor(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterRouter("pick", func(ctx context.Context, payload any, flowCtx Context) (Routing, error) {
		return GotoRouting("yes"), nil
	})
	callables.RegisterCallable("markYes", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return "ran-yes", nil
	})
	callables.RegisterCallable("markNo", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return "ran-no", nil
	})

	g := buildGraph(t, config.FlowConfig{
		Entry: "router",
		Nodes: map[string]config.NodeConfig{
			"router": routingNodeConfig("pick"),
			"yes":    functionNodeConfig("markYes"),
			"no":     functionNodeConfig("markNo"),
		},
		Edges: []string{"router >> (yes | no)"},
	}, callables)

	finalCtx, failure, err := Run(context.Background(), g, NewContext(), nil)
	require.NoError(t, err)
	require.Nil(t, failure)
	require.Equal(t, "ran-yes", finalCtx.Payload("yes"))
	require.Nil(t, finalCtx.Payload("no"))

	var ranNo bool
	for _, step := range finalCtx.Steps() {
		if step.NodeID == "no" {
			ranNo = true
		}
	}
	require.False(t, ranNo, "the un-selected branch must never execute")
}

func TestRun_OnErrorContinueAdvancesPastFailedNode(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("boom", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return nil, errors.New("deliberate failure")
	})
	var bRan bool
	callables.RegisterCallable("markB", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		bRan = true
		return "b-ran", nil
	})

	nc := functionNodeConfig("boom")
	nc.Policy = &config.PolicyConfig{OnError: &config.OnErrorConfig{Action: ActionContinue}}

	g := buildGraph(t, config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": nc,
			"b": functionNodeConfig("markB"),
		},
		Edges: []string{"a >> b"},
	}, callables)

	finalCtx, failure, err := Run(context.Background(), g, NewContext(), nil)
	require.NoError(t, err)
	require.Nil(t, failure)
	require.True(t, bRan)
	require.Equal(t, "a", finalCtx[KeyFailedNodeID])
}

func TestRun_OnErrorGotoRedirectsToRescueNode(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("boom", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return nil, errors.New("deliberate failure")
	})
	callables.RegisterCallable("rescue", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return "rescued", nil
	})

	nc := functionNodeConfig("boom")
	nc.Policy = &config.PolicyConfig{OnError: &config.OnErrorConfig{Action: ActionGoto, Target: "rescue"}}

	g := buildGraph(t, config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a":      nc,
			"rescue": functionNodeConfig("rescue"),
		},
		Edges: []string{}, // rescue is reachable only via the forced goto, never declared
	}, callables)

	finalCtx, failure, err := Run(context.Background(), g, NewContext(), nil)
	require.NoError(t, err)
	require.Nil(t, failure)
	require.Equal(t, "rescued", finalCtx.Payload("rescue"))
}

func TestRun_StopOnErrorPropagatesFailureSummary(t *testing.T) {
	callables := NewCallableRegistry()
	callables.RegisterCallable("boom", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		return nil, errors.New("deliberate failure")
	})

	g := buildGraph(t, config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{"a": functionNodeConfig("boom")},
	}, callables)

	_, failure, err := Run(context.Background(), g, NewContext(), nil)
	require.Error(t, err)
	require.NotNil(t, failure)
	require.Equal(t, "a", failure.FailedNodeID)
	require.Contains(t, failure.Reason, "deliberate failure")
}

func TestRun_CancellationMidFlowStopsBeforeNextNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callables := NewCallableRegistry()
	callables.RegisterCallable("cancelSelf", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		cancel()
		return "a-ran", nil
	})
	var bRan bool
	callables.RegisterCallable("markB", func(ctx context.Context, payload any, flowCtx Context) (any, error) {
		bRan = true
		return "b-ran", nil
	})

	g := buildGraph(t, config.FlowConfig{
		Entry: "a",
		Nodes: map[string]config.NodeConfig{
			"a": functionNodeConfig("cancelSelf"),
			"b": functionNodeConfig("markB"),
		},
		Edges: []string{"a >> b"},
	}, callables)

	finalCtx, failure, err := Run(ctx, g, NewContext(), nil)
	require.Error(t, err)
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindCancelled, fe.Kind)
	require.NotNil(t, failure)
	require.False(t, bRan, "cancellation must be observed before the next node executes")
	require.Equal(t, "a-ran", finalCtx.Payload("a"), "the already-running node still completes and records its result")
}

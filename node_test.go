package nodeflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseNode_BindIdempotent(t *testing.T) {
	n := &baseNode{}
	require.NoError(t, n.Bind("a"))
	require.NoError(t, n.Bind("a"))
	require.Equal(t, "a", n.ID())
}

func TestBaseNode_RebindToDifferentIDFails(t *testing.T) {
	n := &baseNode{}
	require.NoError(t, n.Bind("a"))

	err := n.Bind("b")
	require.Error(t, err)
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindConfiguration, fe.Kind)
	require.Equal(t, "a", n.ID(), "failed rebind must not mutate the existing id")
}

func TestPayloadResult(t *testing.T) {
	r := PayloadResult(42)
	require.Equal(t, 42, r.Payload)
	require.False(t, r.IsRouting)
	require.Nil(t, r.Routing)
}

func TestRoutingResult(t *testing.T) {
	r := RoutingResult(GotoRouting("next"))
	require.True(t, r.IsRouting)
	require.NotNil(t, r.Routing)
	require.Equal(t, "next", r.Routing.Target)
}

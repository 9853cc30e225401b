package nodeflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlowError_ErrorString(t *testing.T) {
	withNode := NewRoutingError("n1", "target not declared")
	require.Equal(t, "RoutingError: node n1: target not declared", withNode.Error())

	noNode := NewConfigurationError("CYCLE", "graph contains a cycle")
	require.Equal(t, "ConfigurationError: graph contains a cycle", noNode.Error())
}

func TestFlowError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := NewNodeExecutionError("n1", cause)

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "boom", wrapped.Message)
}

func TestExceptionType(t *testing.T) {
	require.Equal(t, KindTimeout, exceptionType(NewTimeoutError("n1", "slow")))
	require.Equal(t, "*errors.errorString", exceptionType(errors.New("plain")))
}

func TestNewCancelledError(t *testing.T) {
	err := NewCancelledError("n1")
	require.Equal(t, KindCancelled, err.Kind)
	require.Equal(t, "n1", err.NodeID)
}

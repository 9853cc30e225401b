package nodeflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/config"
)

func TestParseDurationSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"0s", 0},
		{"250ms", 250 * time.Millisecond},
		{"5s", 5 * time.Second},
		{"1m", time.Minute},
		{"1h", time.Hour},
		{"2.5", 2500 * time.Millisecond},
	}
	for _, c := range cases {
		got, err := parseDurationSeconds(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestParseDurationSeconds_Invalid(t *testing.T) {
	_, err := parseDurationSeconds("not-a-duration")
	require.Error(t, err)
}

func TestParseDurationSeconds_NegativeClampsToZero(t *testing.T) {
	got, err := parseDurationSeconds("-5s")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), got)
}

func TestMergePolicy_NilOverrideReturnsBase(t *testing.T) {
	base := DefaultPolicy()
	out, err := MergePolicy(base, nil)
	require.NoError(t, err)
	require.Equal(t, base, out)
}

func TestMergePolicy_ShallowMergeTopLevel(t *testing.T) {
	base := DefaultPolicy()
	failFast := false
	out, err := MergePolicy(base, &config.PolicyConfig{
		FailFast: &failFast,
		Timeout:  "5s",
	})
	require.NoError(t, err)
	require.False(t, out.FailFast)
	require.Equal(t, 5*time.Second, out.Timeout)
	require.Equal(t, base.Retry, out.Retry, "retry untouched when override omits it")
}

func TestMergePolicy_RetryReplacedWholesale(t *testing.T) {
	base := Policy{Retry: Retry{MaxAttempts: 5, Delay: time.Second, Mode: RetryExponential}}
	out, err := MergePolicy(base, &config.PolicyConfig{
		Retry: &config.RetryConfig{MaxAttempts: 2, Mode: RetryFixed},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Retry.MaxAttempts)
	require.Equal(t, RetryFixed, out.Retry.Mode)
	require.Equal(t, time.Duration(0), out.Retry.Delay, "delay not carried over from base when retry subsection is replaced")
}

func TestMergePolicy_OnErrorGotoRequiresTarget(t *testing.T) {
	base := DefaultPolicy()
	_, err := MergePolicy(base, &config.PolicyConfig{
		OnError: &config.OnErrorConfig{Action: ActionGoto},
	})
	require.Error(t, err)
}

func TestMergePolicy_OnErrorGotoWithTarget(t *testing.T) {
	base := DefaultPolicy()
	out, err := MergePolicy(base, &config.PolicyConfig{
		OnError: &config.OnErrorConfig{Action: ActionGoto, Target: "fallback"},
	})
	require.NoError(t, err)
	require.Equal(t, ActionGoto, out.OnError.Action)
	require.Equal(t, "fallback", out.OnError.Target)
}

func TestMergePolicy_InvalidOnErrorAction(t *testing.T) {
	base := DefaultPolicy()
	_, err := MergePolicy(base, &config.PolicyConfig{
		OnError: &config.OnErrorConfig{Action: "explode"},
	})
	require.Error(t, err)
}

func TestRecordNodeError(t *testing.T) {
	ctx := NewContext()
	recordNodeError(ctx, "n1", NewTimeoutError("n1", "too slow"))

	require.Equal(t, "n1", ctx[KeyFailedNodeID])
	require.Equal(t, KindTimeout, ctx[KeyFailedExceptionTyp])
	require.Len(t, ctx.Errors(), 1)
}

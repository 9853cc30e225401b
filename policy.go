package nodeflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/nodeflow/nodeflow/config"
)

// Retry mode constants.
const (
	RetryFixed       = "fixed"
	RetryExponential = "exponential"
)

// On-error action constants.
const (
	ActionStop     = "stop"
	ActionContinue = "continue"
	ActionGoto     = "goto"
)

// Retry is the normalized retry sub-policy.
type Retry struct {
	MaxAttempts int
	Delay       time.Duration
	Mode        string
}

// OnError is the normalized on-error sub-policy.
type OnError struct {
	Action string
	Target string
}

// Policy is the normalized, effective per-node execution policy, per
// spec.md section 3.
type Policy struct {
	FailFast bool
	Timeout  time.Duration
	Retry    Retry
	OnError  OnError
}

// DefaultPolicy mirrors the original's dataclass defaults.
func DefaultPolicy() Policy {
	return Policy{
		FailFast: true,
		Timeout:  0,
		Retry:    Retry{MaxAttempts: 0, Delay: 0, Mode: RetryFixed},
		OnError:  OnError{Action: ActionStop},
	}
}

// parseDurationSeconds parses a duration string ("250ms", "5s", "1m", "1h")
// or a bare number of seconds, returning 0 for "", "0", "0s". Grounded on
// the original's _parse_duration_seconds.
func parseDurationSeconds(value string) (time.Duration, error) {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" || text == "0" || text == "0s" {
		return 0, nil
	}
	multipliers := []struct {
		suffix string
		factor time.Duration
	}{
		{"ms", time.Millisecond},
		{"s", time.Second},
		{"m", time.Minute},
		{"h", time.Hour},
	}
	for _, m := range multipliers {
		if strings.HasSuffix(text, m.suffix) {
			numText := strings.TrimSuffix(text, m.suffix)
			if numText == "" {
				numText = "0"
			}
			n, err := strconv.ParseFloat(numText, 64)
			if err != nil {
				return 0, NewConfigurationError("BAD_DURATION", "invalid duration \""+value+"\"")
			}
			if n < 0 {
				n = 0
			}
			return time.Duration(n * float64(m.factor)), nil
		}
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, NewConfigurationError("BAD_DURATION", "invalid duration \""+value+"\"")
	}
	if n < 0 {
		n = 0
	}
	return time.Duration(n * float64(time.Second)), nil
}

// normalizeRetry builds a Retry from a config.RetryConfig override. A present
// override replaces base wholesale: fields it leaves empty take the defaults
// (no delay, fixed mode), not base's values.
func normalizeRetry(base Retry, override *config.RetryConfig) (Retry, error) {
	if override == nil {
		return base, nil
	}
	var delay time.Duration
	if override.Delay != "" {
		d, err := parseDurationSeconds(override.Delay)
		if err != nil {
			return Retry{}, err
		}
		delay = d
	}
	mode := override.Mode
	if mode != RetryFixed && mode != RetryExponential {
		mode = RetryFixed
	}
	maxAttempts := override.MaxAttempts
	return Retry{MaxAttempts: maxAttempts, Delay: delay, Mode: mode}, nil
}

// normalizeOnError builds an OnError from a config.OnErrorConfig override
// layered on top of base.
func normalizeOnError(base OnError, override *config.OnErrorConfig) (OnError, error) {
	if override == nil {
		return base, nil
	}
	action := override.Action
	if action == "" {
		action = base.Action
	}
	if action != ActionStop && action != ActionContinue && action != ActionGoto {
		return OnError{}, NewConfigurationError("BAD_ON_ERROR", "invalid on_error.action \""+action+"\"")
	}
	target := override.Target
	if action == ActionGoto && target == "" {
		return OnError{}, NewConfigurationError("BAD_ON_ERROR", "on_error.action \"goto\" requires a target")
	}
	return OnError{Action: action, Target: target}, nil
}

// derivedOnErrorAction is the on_error.action fail_fast implies absent an
// explicit override, per spec.md section 4.4: "stop (default when fail_fast
// is true) / continue (when fail_fast is false or overridden)".
func derivedOnErrorAction(pol Policy) string {
	if pol.FailFast {
		return ActionStop
	}
	return ActionContinue
}

// MergePolicy layers override on top of base: top-level scalar fields
// shallow-merge, retry/on_error replace wholesale when present in override.
// Grounded on the original's _merge_policy.
func MergePolicy(base Policy, override *config.PolicyConfig) (Policy, error) {
	if override == nil {
		return base, nil
	}
	out := base
	if override.FailFast != nil {
		out.FailFast = *override.FailFast
	}
	if override.Timeout != "" {
		t, err := parseDurationSeconds(override.Timeout)
		if err != nil {
			return Policy{}, err
		}
		out.Timeout = t
	}
	retry, err := normalizeRetry(base.Retry, override.Retry)
	if err != nil {
		return Policy{}, err
	}
	out.Retry = retry
	onErr, err := normalizeOnError(base.OnError, override.OnError)
	if err != nil {
		return Policy{}, err
	}
	if override.OnError == nil && base.OnError.Action == derivedOnErrorAction(base) {
		// on_error was never explicitly set at any prior layer; re-derive it
		// from the (possibly just-changed) fail_fast instead of silently
		// inheriting "stop" from the base default.
		onErr.Action = derivedOnErrorAction(out)
	}
	out.OnError = onErr
	return out, nil
}

// recordNodeError appends an error record and sets the failed_* shortcuts,
// grounded on the original's _record_node_error.
func recordNodeError(ctx Context, nodeID string, err error) {
	ctx.recordFailure(nodeID, exceptionType(err), err.Error())
}

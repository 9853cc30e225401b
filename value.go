package nodeflow

import "fmt"

// asMap returns v as a map[string]any, converting from the common shapes the
// resolver and join aggregator encounter (map[string]any already, or a
// Context). Returns ok=false for anything else.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// asSlice returns v as a []any, or ok=false.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	default:
		return nil, false
	}
}

// asString renders v in its template-substitution string form. Missing
// values (nil) render as the empty string; everything else uses its natural
// string form.
func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// deepCopyValue recursively copies a nested map/slice value, scalars passed
// through unchanged. Used by cloneContext (context.go) to isolate a
// timeout-guarded node attempt's working context from the live one, and by
// the join aggregator (run.go) to snapshot an aggregate for context["joins"]
// independently of the live payload a downstream node may mutate in place.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopyValue(val)
		}
		return out
	default:
		return v
	}
}

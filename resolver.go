package nodeflow

import (
	"os"
	"strings"
)

// Scope tokens selecting the root a dotted path is evaluated against.
const (
	scopeCtx = "$ctx"
	scopeDot = "$."
	scopeEnv = "$env"
)

// splitPath splits a dotted path into its segments, discarding empty ones
// the way the original's `[p for p in path.split(".") if p]` does.
func splitPath(path string) []string {
	raw := strings.Split(path, ".")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripScope removes a leading scope token and returns the remaining path
// plus which root it addresses. A bare path with no scope token addresses
// the context root, per spec.md section 4.1's "legacy compatibility" rule.
func stripScope(path string) (root string, rest string) {
	switch {
	case strings.HasPrefix(path, scopeCtx+"."):
		return "ctx", strings.TrimPrefix(path, scopeCtx+".")
	case path == scopeCtx:
		return "ctx", ""
	case strings.HasPrefix(path, scopeDot):
		return "ctx", strings.TrimPrefix(path, scopeDot)
	case strings.HasPrefix(path, scopeEnv+"."):
		return "env", strings.TrimPrefix(path, scopeEnv+".")
	case path == scopeEnv:
		return "env", ""
	default:
		return "ctx", path
	}
}

// getFromPath reads a dotted path rooted at ctx (or the process environment
// for $env paths). Missing segments return nil, never an error — grounded on
// the original's _get_from_path.
func getFromPath(ctx Context, path string) any {
	if path == "" {
		return nil
	}
	root, rest := stripScope(path)
	if root == "env" {
		v, ok := os.LookupEnv(rest)
		if !ok {
			return nil
		}
		return v
	}
	parts := splitPath(rest)
	var current any = map[string]any(ctx)
	for _, part := range parts {
		m, ok := asMap(current)
		if !ok {
			return nil
		}
		v, present := m[part]
		if !present {
			return nil
		}
		current = v
	}
	return current
}

// setToPath writes value at a dotted path rooted at ctx, creating
// intermediate mappings as needed. $env paths are read-only and rejected by
// the caller before this is reached (see ResolveOutputs). Grounded on the
// original's _set_to_path.
func setToPath(ctx Context, path string, value any) {
	if path == "" {
		return
	}
	_, rest := stripScope(path)
	parts := splitPath(rest)
	if len(parts) == 0 {
		return
	}
	current := map[string]any(ctx)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// isPathRef reports whether s is a pure path reference: a string beginning
// with "$".
func isPathRef(s string) bool {
	return strings.HasPrefix(s, "$")
}

// templateSpan is one {{ expr }} occurrence found inside a template string.
type templateSpan struct {
	start, end int // byte offsets of the full "{{ ... }}" span in the source
	expr       string
}

// findTemplateSpans scans s for {{ ... }} spans using a small hand-rolled
// scanner (not regexp backtracking) so a missing closing brace surfaces as a
// validation error quoting the offending text rather than silently matching
// nothing.
func findTemplateSpans(s string) ([]templateSpan, error) {
	var spans []templateSpan
	i := 0
	for {
		open := strings.Index(s[i:], "{{")
		if open == -1 {
			break
		}
		open += i
		close := strings.Index(s[open+2:], "}}")
		if close == -1 {
			return nil, NewConfigurationError("BAD_TEMPLATE", "unterminated template span in \""+s+"\"")
		}
		close += open + 2
		expr := strings.TrimSpace(s[open+2 : close])
		if expr == "" {
			return nil, NewConfigurationError("BAD_TEMPLATE", "empty template span in \""+s+"\"")
		}
		spans = append(spans, templateSpan{start: open, end: close + 2, expr: expr})
		i = close + 2
	}
	return spans, nil
}

// isTemplate reports whether s contains at least one {{ }} span.
func isTemplate(s string) bool {
	return strings.Contains(s, "{{") && strings.Contains(s, "}}")
}

// Resolve evaluates a single expression string against ctx: a path reference
// ("$..." form) yields its raw value, anything else is returned as a literal
// string. validateScope rejects a path whose scope token isn't one of
// $ctx/$./$env.
func Resolve(ctx Context, expr string) (any, error) {
	if !isPathRef(expr) {
		return expr, nil
	}
	if err := validateScope(expr); err != nil {
		return nil, err
	}
	return getFromPath(ctx, expr), nil
}

func validateScope(expr string) error {
	switch {
	case strings.HasPrefix(expr, scopeCtx),
		strings.HasPrefix(expr, scopeDot),
		strings.HasPrefix(expr, scopeEnv):
		return nil
	default:
		return NewConfigurationError("BAD_SCOPE", "expression references undeclared scope: \""+expr+"\"")
	}
}

// RenderTemplate substitutes every {{ expr }} span in s with the resolved
// expression's string form, leaving surrounding literal text untouched.
// Missing path segments render as "" (soft failure); a malformed span is a
// ConfigurationError.
func RenderTemplate(ctx Context, s string) (string, error) {
	spans, err := findTemplateSpans(s)
	if err != nil {
		return "", err
	}
	if len(spans) == 0 {
		return s, nil
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp.start])
		val, err := Resolve(ctx, sp.expr)
		if err != nil {
			return "", err
		}
		b.WriteString(asString(val))
		last = sp.end
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// ResolveInputs evaluates a node's inputs binding into the payload passed to
// Execute. binding is one of: nil (pass through the scheduler-supplied
// payload untouched), a path string, a template string, or a
// map[string]any whose values are each independently resolved.
func ResolveInputs(ctx Context, binding any, fallback any) (any, error) {
	switch b := binding.(type) {
	case nil:
		return fallback, nil
	case string:
		return resolveStringBinding(ctx, b)
	case map[string]any:
		out := make(map[string]any, len(b))
		for k, v := range b {
			rv, err := resolveBindingValue(ctx, v)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	default:
		return binding, nil
	}
}

func resolveBindingValue(ctx Context, v any) (any, error) {
	if s, ok := v.(string); ok {
		return resolveStringBinding(ctx, s)
	}
	return v, nil
}

func resolveStringBinding(ctx Context, s string) (any, error) {
	if isPathRef(s) {
		return Resolve(ctx, s)
	}
	if isTemplate(s) {
		return RenderTemplate(ctx, s)
	}
	return s, nil
}

// ResolveOutputs writes a node's result through its outputs binding: nil
// means the caller already wrote context.payloads (the scheduler always
// does this); a single path string writes the whole result there; a
// map[string]any writes named fields of a map result to independent paths.
func ResolveOutputs(ctx Context, binding any, result any) error {
	switch b := binding.(type) {
	case nil:
		return nil
	case string:
		if strings.HasPrefix(b, scopeEnv) {
			return NewConfigurationError("READONLY_SCOPE", "$env is read-only, cannot write to \""+b+"\"")
		}
		setToPath(ctx, b, result)
		return nil
	case map[string]any:
		resultMap, ok := asMap(result)
		for key, path := range b {
			p, ok2 := path.(string)
			if !ok2 {
				continue
			}
			if strings.HasPrefix(p, scopeEnv) {
				return NewConfigurationError("READONLY_SCOPE", "$env is read-only, cannot write to \""+p+"\"")
			}
			var v any
			if ok {
				v = resultMap[key]
			}
			setToPath(ctx, p, v)
		}
		return nil
	default:
		return NewConfigurationError("BAD_OUTPUTS", "outputs binding must be a path string or mapping")
	}
}

// Package config defines the already-parsed declarative flow configuration
// schema. Nothing here reads YAML or JSON — file loading is out of scope;
// callers build these structs directly (or a thin adapter elsewhere in
// their own tree decodes them from whatever format they prefer).
package config

// SettingValue is one entry of a node's typed setting map. The registry
// decides how to interpret Value based on Type; this package only carries
// the shape through from configuration to node construction.
type SettingValue struct {
	Type  string // "string" | "expression" | "bool" | "sequence" | "mapping"
	Value any
}

// NodeInputsConfig is the context.inputs sub-schema: either a bare path or
// template (Raw), or the structured {callable, payload} form used by
// function-like nodes.
type NodeInputsConfig struct {
	// Raw holds the inputs binding when it's a single path string, a
	// template string, or an already-built map[string]any — whatever a
	// node's ResolveInputs call accepts directly. Nil when Callable/Payload
	// are used instead.
	Raw any

	// Callable is a dotted identifier naming a registered callable
	// (resolved through a CallableRegistry at graph-compile time), used by
	// function-like and routing-like node types.
	Callable string

	// Payload optionally overrides the input payload path/template when
	// Callable is set.
	Payload any
}

// NodeContextConfig is the context sub-key of a node's configuration.
type NodeContextConfig struct {
	Inputs  NodeInputsConfig
	Outputs any // nil | path string | map[string]any with path-string values
}

// RetryConfig mirrors spec.md section 6's retry schema.
type RetryConfig struct {
	MaxAttempts int
	Delay       string // duration string, e.g. "250ms"; or plain seconds
	Mode        string // "fixed" | "exponential"
}

// OnErrorConfig mirrors spec.md section 6's on_error schema.
type OnErrorConfig struct {
	Action string // "stop" | "continue" | "goto"
	Target string
}

// PolicyConfig is the raw (pre-normalized) per-node or global policy
// override, as parsed from configuration.
type PolicyConfig struct {
	FailFast *bool // nil means "inherit"
	Timeout  string
	Retry    *RetryConfig // nil means "inherit whole subsection"
	OnError  *OnErrorConfig
}

// NodeConfig is one entry of flow.nodes.
type NodeConfig struct {
	ID           string
	Type         string
	Name         string
	Context      NodeContextConfig
	Setting      map[string]SettingValue
	Policy       *PolicyConfig
	DefaultRoute string
}

// FlowConfig is the top-level parsed configuration, matching spec.md
// section 6's schema.
type FlowConfig struct {
	Entry  string
	Nodes  map[string]NodeConfig
	Edges  []string
	Policy *PolicyConfig // global policy
}

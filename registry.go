package nodeflow

import (
	"sort"
	"sync"

	"github.com/nodeflow/nodeflow/config"
)

// NodeFactory constructs a fresh Node instance from a node's parsed
// configuration and the callable registry active for this compile. Registered
// once per type name at process init.
type NodeFactory func(cfg config.NodeConfig, callables *CallableRegistry) (Node, error)

// Registry is a process-wide, read-only-after-init string→constructor
// table for node types, grounded on the provider-registry pattern: a
// sync.RWMutex-guarded map with Register/MustRegister/Build/List.
type Registry struct {
	mu    sync.RWMutex
	types map[string]NodeFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]NodeFactory)}
}

// Register adds a factory under typeName. Re-registering the same name
// overwrites the previous factory, matching how the reference registries in
// this ecosystem behave for process-init-time registration.
func (r *Registry) Register(typeName string, factory NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typeName] = factory
}

// MustRegister panics if typeName is already registered. Intended for
// package-init calls where a collision indicates a programming error.
func (r *Registry) MustRegister(typeName string, factory NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[typeName]; exists {
		panic("nodeflow: node type already registered: " + typeName)
	}
	r.types[typeName] = factory
}

// Build instantiates typeName with cfg. Unknown types fail with a
// ConfigurationError naming the missing type, per spec.md section 4.3.
func (r *Registry) Build(typeName string, cfg config.NodeConfig, callables *CallableRegistry) (Node, error) {
	r.mu.RLock()
	factory, ok := r.types[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, NewConfigurationError("UNKNOWN_NODE_TYPE", "no node type registered as \""+typeName+"\"")
	}
	return factory(cfg, callables)
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeName]
	return ok
}

// List returns the registered type names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the process-wide registry used by CompileGraph when no
// explicit Registry is supplied.
var DefaultRegistry = NewRegistry()

// inputsBinding resolves the binding Run passes to ResolveInputs from a
// node's parsed context.inputs configuration: Raw when set, else Payload
// (the optional override alongside a Callable).
func inputsBinding(in config.NodeInputsConfig) any {
	if in.Raw != nil {
		return in.Raw
	}
	return in.Payload
}

func init() {
	DefaultRegistry.Register("function", func(cfg config.NodeConfig, callables *CallableRegistry) (Node, error) {
		name := cfg.Context.Inputs.Callable
		if name == "" {
			return nil, NewConfigurationError("MISSING_CALLABLE", "function node \""+cfg.ID+"\" declares no callable")
		}
		fn, err := callables.Callable(name)
		if err != nil {
			return nil, err
		}
		return NewFunctionNode(fn), nil
	})
	DefaultRegistry.Register("routing", func(cfg config.NodeConfig, callables *CallableRegistry) (Node, error) {
		name := cfg.Context.Inputs.Callable
		if name == "" {
			return nil, NewConfigurationError("MISSING_CALLABLE", "routing node \""+cfg.ID+"\" declares no callable")
		}
		fn, err := callables.Router(name)
		if err != nil {
			return nil, err
		}
		return NewRoutingNode(fn), nil
	})
	DefaultRegistry.Register("loop", func(cfg config.NodeConfig, callables *CallableRegistry) (Node, error) {
		bodyRoute, _ := settingString(cfg.Setting, "body_route")
		loopRoute, _ := settingString(cfg.Setting, "loop_route")
		itemsBinding, _ := cfg.Setting["items"]
		return NewLoopNode(itemsBinding.Value, bodyRoute, loopRoute), nil
	})
}

func settingString(setting map[string]config.SettingValue, key string) (string, bool) {
	sv, ok := setting[key]
	if !ok {
		return "", false
	}
	s, ok := sv.Value.(string)
	return s, ok
}

package nodeflow

import "sync"

// CallableRegistry resolves the dotted identifiers used in a node's
// context.inputs.callable configuration into actual Go functions. Go has no
// notion of "import by dotted path at runtime" the way the source language
// does, so this registry is the idiomatic substitute: callables are
// registered by name at process init, the same way node types are.
type CallableRegistry struct {
	mu        sync.RWMutex
	callables map[string]Callable
	routers   map[string]RoutingFunc
}

func NewCallableRegistry() *CallableRegistry {
	return &CallableRegistry{
		callables: make(map[string]Callable),
		routers:   make(map[string]RoutingFunc),
	}
}

// RegisterCallable registers a plain function-node callable under name.
func (r *CallableRegistry) RegisterCallable(name string, fn Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callables[name] = fn
}

// RegisterRouter registers a routing-node function under name.
func (r *CallableRegistry) RegisterRouter(name string, fn RoutingFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routers[name] = fn
}

// Callable looks up a registered function-node callable.
func (r *CallableRegistry) Callable(name string) (Callable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.callables[name]
	if !ok {
		return nil, NewConfigurationError("MISSING_CALLABLE", "no callable registered as \""+name+"\"")
	}
	return fn, nil
}

// Router looks up a registered routing-node function.
func (r *CallableRegistry) Router(name string) (RoutingFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.routers[name]
	if !ok {
		return nil, NewConfigurationError("MISSING_CALLABLE", "no routing function registered as \""+name+"\"")
	}
	return fn, nil
}

// DefaultCallables is the process-wide callable registry used by
// CompileGraph when no explicit CallableRegistry is supplied.
var DefaultCallables = NewCallableRegistry()

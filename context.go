// Package nodeflow implements a declarative workflow engine that executes
// directed-acyclic node graphs with fan-out, fan-in joins, routing decisions,
// and policy-driven retry/continue/goto recovery.
package nodeflow

// Reserved top-level context keys. See spec.md section 3.
const (
	KeySteps              = "steps"
	KeyPayloads           = "payloads"
	KeyRouting            = "routing"
	KeyJoins              = "joins"
	KeyErrors             = "errors"
	KeyFailedNodeID       = "failed_node_id"
	KeyFailedExceptionTyp = "failed_exception_type"
	KeyFailedMessage      = "failed_message"
	KeyAgents             = "agents"
	KeyMetrics            = "metrics"
)

// Step statuses recorded in context["steps"].
const (
	StatusStart    = "start"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusContinue = "continue"
	StatusGoto     = "goto"
)

// Context is the hierarchical, shared mapping that accumulates all flow
// state for one invocation. Values are untyped (null | bool | int | float |
// string | list | mapping); see value.go for the conversion helpers that
// centralize traversal of this shape.
type Context map[string]any

// StepRecord is one entry of context["steps"].
type StepRecord struct {
	NodeID  string `json:"node_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorRecord is one entry of context["errors"].
type ErrorRecord struct {
	NodeID    string `json:"node_id"`
	Exception string `json:"exception"`
	Message   string `json:"message"`
}

// NewContext returns an empty Context with reserved keys initialized, the
// way a caller-supplied context is normalized before the first node runs.
func NewContext() Context {
	return ensureContext(Context{})
}

// ensureContext seeds the reserved keys on ctx if absent and returns it.
// Mirrors the original's _ensure_context: reserved keys exist before the
// first node runs, regardless of what the caller passed in.
func ensureContext(ctx Context) Context {
	if ctx == nil {
		ctx = Context{}
	}
	if _, ok := ctx[KeySteps]; !ok {
		ctx[KeySteps] = []StepRecord{}
	}
	if _, ok := ctx[KeyRouting]; !ok {
		ctx[KeyRouting] = map[string][]Routing{}
	}
	if _, ok := ctx[KeyJoins]; !ok {
		ctx[KeyJoins] = map[string]map[string]any{}
	}
	if _, ok := ctx[KeyErrors]; !ok {
		ctx[KeyErrors] = []ErrorRecord{}
	}
	if _, ok := ctx[KeyPayloads]; !ok {
		ctx[KeyPayloads] = map[string]any{}
	}
	return ctx
}

func (c Context) appendStep(rec StepRecord) {
	steps, _ := c[KeySteps].([]StepRecord)
	c[KeySteps] = append(steps, rec)
}

func (c Context) appendError(rec ErrorRecord) {
	errs, _ := c[KeyErrors].([]ErrorRecord)
	c[KeyErrors] = append(errs, rec)
}

func (c Context) recordFailure(nodeID, exceptionType, message string) {
	c.appendError(ErrorRecord{NodeID: nodeID, Exception: exceptionType, Message: message})
	c[KeyFailedNodeID] = nodeID
	c[KeyFailedExceptionTyp] = exceptionType
	c[KeyFailedMessage] = message
}

func (c Context) payloads() map[string]any {
	m, _ := c[KeyPayloads].(map[string]any)
	if m == nil {
		m = map[string]any{}
		c[KeyPayloads] = m
	}
	return m
}

// RecordRouting appends r to the ordered routing-decision sequence for
// nodeID. Routing nodes call this implicitly through the scheduler; a
// function-like callable may also call it directly to write a routing
// decision as a side effect without changing its own return shape.
func (c Context) RecordRouting(nodeID string, r Routing) {
	m := c.routingMap()
	m[nodeID] = append(m[nodeID], r)
}

func (c Context) routingMap() map[string][]Routing {
	m, _ := c[KeyRouting].(map[string][]Routing)
	if m == nil {
		m = map[string][]Routing{}
		c[KeyRouting] = m
	}
	return m
}

func (c Context) joinsMap() map[string]map[string]any {
	m, _ := c[KeyJoins].(map[string]map[string]any)
	if m == nil {
		m = map[string]map[string]any{}
		c[KeyJoins] = m
	}
	return m
}

// Steps returns a copy of the recorded step sequence.
func (c Context) Steps() []StepRecord {
	steps, _ := c[KeySteps].([]StepRecord)
	out := make([]StepRecord, len(steps))
	copy(out, steps)
	return out
}

// Payload returns the most recent output value of nodeID, or nil.
func (c Context) Payload(nodeID string) any {
	return c.payloads()[nodeID]
}

// Errors returns a copy of the recorded error sequence.
func (c Context) Errors() []ErrorRecord {
	errs, _ := c[KeyErrors].([]ErrorRecord)
	out := make([]ErrorRecord, len(errs))
	copy(out, errs)
	return out
}

// cloneContext returns an independent copy of c, deep-copying every
// structured container a node's Execute can reach and mutate (payloads,
// joins, routing, steps, errors, and any domain bucket under a plain key).
// Used to isolate a timeout-guarded attempt's writes from the live context
// it was cloned from; see mergeContext.
func cloneContext(c Context) Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = deepCopyValue(v)
	}
	if steps, ok := c[KeySteps].([]StepRecord); ok {
		out[KeySteps] = append([]StepRecord(nil), steps...)
	}
	if errs, ok := c[KeyErrors].([]ErrorRecord); ok {
		out[KeyErrors] = append([]ErrorRecord(nil), errs...)
	}
	if routing, ok := c[KeyRouting].(map[string][]Routing); ok {
		rc := make(map[string][]Routing, len(routing))
		for k, v := range routing {
			rc[k] = append([]Routing(nil), v...)
		}
		out[KeyRouting] = rc
	}
	if joins, ok := c[KeyJoins].(map[string]map[string]any); ok {
		jc := make(map[string]map[string]any, len(joins))
		for k, v := range joins {
			if m, ok := deepCopyValue(v).(map[string]any); ok {
				jc[k] = m
			}
		}
		out[KeyJoins] = jc
	}
	return out
}

// mergeContext folds snapshot's top-level entries back into live, called
// only once the node that ran against snapshot has returned — at that point
// the scheduler is again the sole writer of live, so a plain overwrite is
// safe.
func mergeContext(live, snapshot Context) {
	for k, v := range snapshot {
		live[k] = v
	}
}
